package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/pkg/domain/notification"
	"github.com/girderhq/api/pkg/logger"
)

// NotificationHandler handles notification HTTP requests.
type NotificationHandler struct {
	service *app.NotificationService
	logger  *logger.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(svc *app.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: svc,
		logger:  log,
	}
}

// NotificationResponse represents a notification in API responses.
type NotificationResponse struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toNotificationResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID().String(),
		Kind:      string(n.Kind()),
		Subject:   n.Subject(),
		Body:      n.Body(),
		ReadAt:    n.ReadAt(),
		CreatedAt: n.CreatedAt(),
	}
}

// List handles GET /api/v1/notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	input := app.ListNotificationsInput{
		UnreadOnly: parseQueryBool(query.Get("unread_only")),
		Page:       parseQueryInt(query.Get("page"), 1),
		PerPage:    parseQueryInt(query.Get("per_page"), 20),
	}

	notifications, total, err := h.service.List(r.Context(), rc, input)
	if err != nil {
		writeServiceError(w, r, h.logger, "notification", err)
		return
	}

	out := make([]NotificationResponse, len(notifications))
	for i, n := range notifications {
		out[i] = toNotificationResponse(n)
	}

	respondList(w, out, total, input.Page, input.PerPage)
}

// MarkRead handles POST /api/v1/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	rc, ok := requestContext(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkRead(r.Context(), rc, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, h.logger, "notification", err)
		return
	}

	respond(w, http.StatusOK, map[string]bool{"read": true})
}
