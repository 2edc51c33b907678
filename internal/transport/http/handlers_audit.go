package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lendgate/internal/audit"
	"lendgate/pkg/platform/httputil"
)

// AuditReader lists the audit trail of an application.
type AuditReader interface {
	ListByApplication(ctx context.Context, applicationID string) ([]audit.Event, error)
}

// AuditHandler exposes the per-application audit trail.
type AuditHandler struct {
	reader AuditReader
}

func NewAuditHandler(reader AuditReader) *AuditHandler {
	return &AuditHandler{reader: reader}
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/applications/{applicationID}/audit", h.handleList)
}

func (h *AuditHandler) handleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.reader.ListByApplication(r.Context(), chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
