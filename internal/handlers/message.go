package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/messagely/apiserver/internal/services"
	"github.com/messagely/apiserver/internal/store"
	"github.com/messagely/apiserver/types"
)

// MessageHandler provides HTTP handlers for messages.
//
// Participant authorization is data-dependent, so it is evaluated here
// after the message is fetched rather than in route middleware: viewing
// requires the caller to be sender or recipient, marking read requires the
// caller to be the recipient.
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler constructs a handler with the provided service.
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// MessageRouter registers message routes on the given router.
func MessageRouter(
	r chi.Router,
	messageService *services.MessageService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewMessageHandler(messageService)

	r.Use(authMiddleware)
	r.Post("/", handler.SendMessage)
	r.Route("/{messageID}", func(r chi.Router) {
		r.Get("/", handler.GetMessage)
		r.Post("/read", handler.MarkRead)
	})
}

// GetMessage returns a message with both participant summaries. Only the
// sender or the recipient may view it.
func (h *MessageHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	caller, err := usernameFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseMessageID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.messageService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeServerError(w, err, "failed to fetch message")
		return
	}

	if !isParticipant(caller, message) {
		writeError(w, http.StatusForbidden, "access restricted to message participants")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// SendMessage stores a new message from the caller to the named recipient.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	caller, err := usernameFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	message, err := h.messageService.Send(r.Context(), caller, req.ToUsername, req.Body)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyBody):
			writeError(w, http.StatusBadRequest, "message body is required")
		case errors.Is(err, store.ErrUnknownUser):
			writeError(w, http.StatusBadRequest, "no such recipient")
		default:
			writeServerError(w, err, "failed to send message")
		}
		return
	}

	writeJSON(w, http.StatusCreated, SentMessageResponse{
		Message: SentMessage{
			ID:           message.ID,
			FromUsername: message.FromUsername,
			ToUsername:   message.ToUsername,
			Body:         message.Body,
			SentAt:       message.SentAt,
		},
	})
}

// MarkRead sets read_at on a message. Only the recipient may mark it, and
// a message can be marked read only once; a second attempt is a conflict.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller, err := usernameFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseMessageID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := h.messageService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "message not found")
			return
		}
		writeServerError(w, err, "failed to fetch message")
		return
	}

	if caller != message.Recipient() {
		writeError(w, http.StatusForbidden, "only the recipient may mark a message read")
		return
	}

	marked, err := h.messageService.MarkRead(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadyRead):
			writeError(w, http.StatusConflict, "message already read")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "message not found")
		default:
			writeServerError(w, err, "failed to mark message read")
		}
		return
	}

	writeJSON(w, http.StatusOK, ReadReceiptResponse{
		Message: ReadReceipt{ID: marked.ID, ReadAt: marked.ReadAt},
	})
}

// isParticipant reports whether the caller is the sender or the recipient.
func isParticipant(caller string, message types.Message) bool {
	return caller == message.Sender() || caller == message.Recipient()
}

// SendMessageRequest is the POST /messages payload.
type SendMessageRequest struct {
	ToUsername string `json:"to_username"`
	Body       string `json:"body"`
}

// MessageResponse wraps a single message with participant summaries.
type MessageResponse struct {
	Message types.Message `json:"message"`
}

// SentMessage is the creation response payload.
type SentMessage struct {
	ID           int64     `json:"id"`
	FromUsername string    `json:"from_username"`
	ToUsername   string    `json:"to_username"`
	Body         string    `json:"body"`
	SentAt       time.Time `json:"sent_at"`
}

// SentMessageResponse wraps the creation payload.
type SentMessageResponse struct {
	Message SentMessage `json:"message"`
}

// ReadReceipt is the mark-read response payload.
type ReadReceipt struct {
	ID     int64      `json:"id"`
	ReadAt *time.Time `json:"read_at"`
}

// ReadReceiptResponse wraps the mark-read payload.
type ReadReceiptResponse struct {
	Message ReadReceipt `json:"message"`
}

func parseMessageID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "messageID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid message id")
	}
	return id, nil
}
