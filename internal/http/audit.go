package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/decidiu/plataforma/internal/service"
)

// ListAudit devolve o log de auditoria, mais recentes primeiro.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.AuditQuery{Action: strings.TrimSpace(q.Get("action"))}

	var ok bool
	if query.Limit, ok = queryInt(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if raw := strings.TrimSpace(q.Get("user_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "user_id inválido", nil)
			return
		}
		query.UserID = &id
	}

	entries, err := h.deps.Audit.List(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}
