package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/meetsync/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// RoomServiceDeps captures dependencies for constructing a room service.
type RoomServiceDeps struct {
	Rooms    application.RoomStore
	Events   application.EventPublisher
	Recorder application.OperationRecorder
	Logger   *slog.Logger
}

// NewRoomService builds a room service using deps combined with the factory
// defaults.
func (f *ServiceFactory) NewRoomService(deps RoomServiceDeps) *application.RoomService {
	var opts []application.RoomServiceOption
	if deps.Events != nil {
		opts = append(opts, application.WithEventPublisher(deps.Events))
	}
	if deps.Recorder != nil {
		opts = append(opts, application.WithOperationRecorder(deps.Recorder))
	}
	return application.NewRoomServiceWithLogger(deps.Rooms, f.IDGenerator.NextFunc(), f.Clock.NowFunc(), deps.Logger, opts...)
}
