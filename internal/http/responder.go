package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/meetsync/internal/application"
)

var (
	errBadRequestBody = errors.New("無效的請求格式。")
	errRateLimited    = errors.New("請求過於頻繁，請稍後再試。")
)

const (
	msgValidationFailed   = "輸入內容有誤，請確認後再試。"
	msgFillAllFields      = "請填寫所有欄位"
	msgRoomNotFound       = "找不到該空間"
	msgJoinRoomNotFound   = "找不到此空間 ID，請確認後再試"
	msgCreateRoomFailed   = "建立空間失敗"
	msgJoinRoomFailed     = "進入空間發生錯誤"
	msgServiceUnavailable = "服務暫時無法使用，請稍後再試。"
	msgInternalError      = "伺服器內部發生錯誤。"
)

// failureMessages overrides the default text for a handler's failures.
type failureMessages struct {
	notFound string
	backend  string
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusErrorCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error, messages failureMessages) {
	status, body := describeServiceError(err, messages)
	r.writeJSON(ctx, w, status, body)
}

// describeServiceError maps an application error to its status and localized body.
func describeServiceError(err error, messages failureMessages) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{ErrorCode: "INTERNAL", Message: msgInternalError}
	}

	if errors.Is(err, application.ErrNotFound) {
		message := messages.notFound
		if message == "" {
			message = msgRoomNotFound
		}
		return http.StatusNotFound, errorResponse{ErrorCode: "ROOM_NOT_FOUND", Message: message}
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		details := localizeValidationErrors(vErr)
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   validationSummary(vErr),
			Errors:    details,
		}
	}

	var bErr *application.BackendError
	if errors.As(err, &bErr) {
		message := messages.backend
		if message == "" {
			message = msgServiceUnavailable
		}
		return http.StatusServiceUnavailable, errorResponse{ErrorCode: "BACKEND_UNAVAILABLE", Message: message}
	}

	return http.StatusInternalServerError, errorResponse{ErrorCode: "INTERNAL", Message: msgInternalError}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return errBadRequestBody.Error()
	case http.StatusNotFound:
		return msgRoomNotFound
	case http.StatusUnprocessableEntity:
		return msgValidationFailed
	case http.StatusTooManyRequests:
		return errRateLimited.Error()
	case http.StatusServiceUnavailable:
		return msgServiceUnavailable
	default:
		return msgInternalError
	}
}

func statusErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "ROOM_NOT_FOUND"
	case http.StatusUnprocessableEntity:
		return "VALIDATION_FAILED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusServiceUnavailable:
		return "BACKEND_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

// validationSummary picks the top level message: the single field message,
// the fill-in-everything prompt when only required fields are missing, or a
// generic prompt otherwise.
func validationSummary(vErr *application.ValidationError) string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return msgValidationFailed
	}
	if len(vErr.FieldErrors) == 1 {
		for _, msg := range vErr.FieldErrors {
			return translateValidationMessage(msg)
		}
	}
	for _, msg := range vErr.FieldErrors {
		if !strings.HasSuffix(msg, "is required") {
			return msgValidationFailed
		}
	}
	return msgFillAllFields
}

func translateValidationMessage(message string) string {
	switch message {
	case "name is required":
		return "請輸入空間名稱"
	case "creator name is required", "user name is required":
		return "請輸入姓名"
	case "date is required":
		return "請選擇日期"
	case "date is invalid":
		return "日期格式無效"
	case "end date must not be before start date":
		return "結束日期必須晚於開始日期"
	case "room id is required":
		return "請輸入空間 ID"
	case "user id is required":
		return "缺少使用者 ID"
	case "user is not a member of the room":
		return "您不是此空間的成員"
	case "slot id is invalid":
		return "時段格式無效"
	case "slot is outside the room dates":
		return "時段不在空間的日期範圍內"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"errorCode,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
