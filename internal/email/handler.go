package email

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/cellarflow/internal/apierr"
	"github.com/joao-fontenele/cellarflow/internal/validation"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

type SendRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required"`
}

type sendResponse struct {
	Status string `json:"status"`
}

// HandleSend accepts a message for delivery. Delivery itself is a log line;
// no mail provider is wired.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeError(w, apierr.Status(err), apierr.Message(err))
		return
	}

	h.logger.Info("email sent", "to", req.To, "subject", req.Subject, "body_bytes", len(req.Body))

	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
