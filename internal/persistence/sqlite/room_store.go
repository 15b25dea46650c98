package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/meetsync/internal/persistence"
)

// PutRoom creates or overwrites the row for room.ID.
func (s *Storage) PutRoom(ctx context.Context, room persistence.Room) error {
	room = room.Clone().Normalize()
	doc, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("sqlite: encode room %s: %w", room.ID, err)
	}

	const query = `
		INSERT INTO rooms (id, document, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stamp := s.timestamp()
	err = s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, query, room.ID, string(doc), stamp, stamp)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlite: put room %s: %w", room.ID, err)
	}
	s.notify(ctx, room)
	return nil
}

// GetRoom reads one room document.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	var doc string
	err := s.pool.DB().QueryRowContext(ctx, `SELECT document FROM rooms WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		return persistence.Room{}, s.mapper.MapError(err)
	}
	return decodeRoom(doc)
}

// UpdateRoom reads, modifies and writes the document in one transaction.
func (s *Storage) UpdateRoom(ctx context.Context, id string, updates []persistence.FieldUpdate) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var updated persistence.Room
	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var doc string
			if err := tx.QueryRowContext(ctx, `SELECT document FROM rooms WHERE id = ?`, id).Scan(&doc); err != nil {
				return s.mapper.MapError(err)
			}
			room, err := decodeRoom(doc)
			if err != nil {
				return err
			}
			if err := persistence.ApplyUpdates(&room, updates); err != nil {
				return err
			}
			room = room.Normalize()
			encoded, err := json.Marshal(room)
			if err != nil {
				return fmt.Errorf("sqlite: encode room %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE rooms SET document = ?, updated_at = ? WHERE id = ?`, string(encoded), s.timestamp(), id); err != nil {
				return err
			}
			updated = room
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.notify(ctx, updated)
	return nil
}

// ListRooms returns every room ordered by id.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `SELECT document FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list rooms: %w", s.mapper.MapError(err))
	}
	defer rows.Close()

	rooms := make([]persistence.Room, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite: scan room: %w", err)
		}
		room, err := decodeRoom(doc)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list rooms: %w", err)
	}
	return rooms, nil
}

// WatchRoom streams snapshots of one room until ctx is done. Changes made by
// other processes arrive only through a shared notifier such as the Redis
// bridge.
func (s *Storage) WatchRoom(ctx context.Context, id string, fn func(persistence.Room)) error {
	return s.hub.Watch(ctx, id, func(ctx context.Context) (persistence.Room, error) {
		return s.GetRoom(ctx, id)
	}, fn)
}

// notify must be called with writeMu held.
func (s *Storage) notify(ctx context.Context, room persistence.Room) {
	if err := s.notifier.Notify(context.WithoutCancel(ctx), room); err != nil {
		s.logger.WarnContext(ctx, "failed to publish room change", "room_id", room.ID, "error", err)
	}
}

func (s *Storage) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func decodeRoom(doc string) (persistence.Room, error) {
	var room persistence.Room
	if err := json.Unmarshal([]byte(doc), &room); err != nil {
		return persistence.Room{}, fmt.Errorf("sqlite: decode room: %w", err)
	}
	return room.Normalize(), nil
}
