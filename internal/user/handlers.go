package user

import (
	"net/http"
	"strings"

	"github.com/noah-isme/cafe-api/internal/common"
)

// Handler exposes the caller's own user record.
type Handler struct {
	Service *Service
}

type verifyRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Verify handles POST /api/v1/verify-user. Token claims win over the body,
// which only fills in what the token lacks.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "user service not configured", nil)
		return
	}
	id, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	if r.ContentLength != 0 {
		var req verifyRequest
		if err := common.DecodeJSON(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
		if strings.TrimSpace(id.Email) == "" {
			id.Email = req.Email
		}
		if strings.TrimSpace(id.Name) == "" {
			id.Name = req.Name
		}
	}
	u, created, err := h.Service.Verify(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	common.JSON(w, status, map[string]any{"data": u})
}

// Me handles GET /api/v1/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "user service not configured", nil)
		return
	}
	id, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	u, err := h.Service.GetBySubject(r.Context(), id.Subject)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": u})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err)
}
