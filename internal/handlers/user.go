package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/messagely/apiserver/internal/services"
	"github.com/messagely/apiserver/internal/store"
	"github.com/messagely/apiserver/types"
)

// UserHandler provides HTTP handlers for the user directory.
type UserHandler struct {
	userService    *services.UserService
	messageService *services.MessageService
}

// NewUserHandler constructs a handler with the provided services.
func NewUserHandler(userService *services.UserService, messageService *services.MessageService) *UserHandler {
	return &UserHandler{
		userService:    userService,
		messageService: messageService,
	}
}

// UserRouter registers user routes on the given router. All routes require
// authentication; the per-user routes additionally require the caller to
// be the named user.
func UserRouter(
	r chi.Router,
	userService *services.UserService,
	messageService *services.MessageService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewUserHandler(userService, messageService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListUsers)
	r.Route("/{username}", func(r chi.Router) {
		r.Use(RequireSelf)
		r.Get("/", handler.GetUser)
		r.Get("/to", handler.MessagesTo)
		r.Get("/from", handler.MessagesFrom)
	})
}

// ListUsers returns the full user directory.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		writeServerError(w, err, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{Users: users})
}

// GetUser returns the full profile of the named user.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	user, err := h.userService.Get(r.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeServerError(w, err, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: user})
}

// MessagesTo returns messages addressed to the named user, each with the
// sender's profile summary.
func (h *UserHandler) MessagesTo(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	messages, err := h.messageService.ListTo(r.Context(), username)
	if err != nil {
		writeServerError(w, err, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

// MessagesFrom returns messages sent by the named user, each with the
// recipient's profile summary.
func (h *UserHandler) MessagesFrom(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	messages, err := h.messageService.ListFrom(r.Context(), username)
	if err != nil {
		writeServerError(w, err, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

// UserListResponse wraps the directory listing.
type UserListResponse struct {
	Users []types.UserSummary `json:"users"`
}

// UserResponse wraps a single full profile.
type UserResponse struct {
	User types.User `json:"user"`
}

// MessageListResponse wraps a message listing.
type MessageListResponse struct {
	Messages []types.Message `json:"messages"`
}
