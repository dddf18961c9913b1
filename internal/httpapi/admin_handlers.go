package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"temida.org/internal/audit"
	"temida.org/internal/auth"
)

const (
	bulkStatusLimit  = 10
	bulkStatusWindow = time.Minute
	maxBulkIDs       = 100
)

type adminUserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Active      bool       `json:"active"`
	Verified    bool       `json:"verified"`
	Language    string     `json:"language"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identities, err := a.identities.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]adminUserResponse, 0, len(identities))
	for _, id := range identities {
		out = append(out, adminUserResponse{
			ID:          id.ID,
			Email:       id.Email,
			DisplayName: id.DisplayName,
			Role:        string(id.Role),
			Active:      id.Active,
			Verified:    id.Verified,
			Language:    id.Language,
			LastLoginAt: id.LastLoginAt,
			CreatedAt:   id.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": out,
		"total": len(out),
	})
}

type bulkStatusRequest struct {
	IDs    []string `json:"ids"`
	Active bool     `json:"active"`
}

// handleAdminBulkStatus activates or deactivates a batch of accounts.
// Admins cannot deactivate themselves; locking out the last administrator
// through the console would need a database visit to undo.
func (a *API) handleAdminBulkStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication_required")
		return
	}
	if !a.allow(w, r, "admin_users_bulk", bulkStatusLimit, bulkStatusWindow, "admin_bulk") {
		return
	}
	var req bulkStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, r, http.StatusBadRequest, "ids is required")
		return
	}
	if len(req.IDs) > maxBulkIDs {
		writeError(w, r, http.StatusBadRequest, "too many ids in one request")
		return
	}
	if !req.Active {
		for _, id := range req.IDs {
			if id == p.SubjectID {
				writeError(w, r, http.StatusBadRequest, "cannot deactivate your own account")
				return
			}
		}
	}

	changed, err := a.identities.SetActive(r.Context(), req.IDs, req.Active)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.record(r.Context(), "admin.users.bulk_status", p.SubjectID, map[string]any{
		"requested": len(req.IDs),
		"changed":   changed,
		"active":    req.Active,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"requested": len(req.IDs),
		"changed":   changed,
		"active":    req.Active,
	})
}

type auditEventResponse struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id,omitempty"`
	Action    string         `json:"action"`
	Category  string         `json:"category"`
	Severity  string         `json:"severity"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (a *API) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	events, err := a.audit.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toAuditEventResponse(ev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func toAuditEventResponse(ev *audit.Event) auditEventResponse {
	return auditEventResponse{
		ID:        ev.ID,
		ActorID:   ev.ActorID,
		Action:    ev.Action,
		Category:  ev.Category,
		Severity:  string(ev.Severity),
		Metadata:  ev.Metadata,
		CreatedAt: ev.CreatedAt,
	}
}
