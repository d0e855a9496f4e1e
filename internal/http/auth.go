package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	httpmiddleware "github.com/decidiu/plataforma/internal/http/middleware"
	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/service"
)

type loginResponse struct {
	repo.Usuario
	MustChangePassword bool       `json:"must_change_password"`
	PasswordExpired    bool       `json:"password_expired"`
	UsingTemporary     bool       `json:"using_temporary"`
	AccessToken        string     `json:"access_token,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

// Login autentica pelo CPF com senha permanente ou provisória.
// Como as demais rotas, responde {"ok":true,"data":{...}}: os campos do usuário,
// must_change_password, password_expired, using_temporary e o token ficam dentro
// de data, não no nível raiz do corpo.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NationalID string `json:"national_id"`
		Password   string `json:"password"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.NationalID) == "" || payload.Password == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "CPF e senha são obrigatórios", nil)
		return
	}

	result, err := h.deps.Auth.Login(r.Context(), payload.NationalID, payload.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := loginResponse{
		Usuario:            result.User,
		MustChangePassword: result.MustChangePassword,
		PasswordExpired:    result.PasswordExpired,
		UsingTemporary:     result.UsingTemporary,
	}
	if result.Token != nil {
		resp.AccessToken = result.Token.Token
		resp.ExpiresAt = &result.Token.ExpiresAt
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Logout registra a saída do usuário informado.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	userID, err := uuid.Parse(strings.TrimSpace(payload.UserID))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "user_id inválido", nil)
		return
	}

	if err := h.deps.Auth.Logout(r.Context(), userID, httpmiddleware.CallerFrom(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "logout realizado"})
}

// RecoverPassword emite senha provisória de uso único.
func (h *Handler) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		NationalID string `json:"national_id"`
		BirthDate  string `json:"birth_date"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	cred, err := h.deps.Auth.RecoverPassword(r.Context(), payload.NationalID, payload.BirthDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"provisional_password": cred.Password,
		"validity_hours":       int(cred.TTL / time.Hour),
		"expires_at":           cred.ExpiresAt,
	})
}

// ChangePassword troca a senha pelo próprio usuário.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID          string `json:"user_id"`
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	userID, err := uuid.Parse(strings.TrimSpace(payload.UserID))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "user_id inválido", nil)
		return
	}

	// chamador identificado só troca a própria senha
	if caller := httpmiddleware.CallerFrom(r.Context()); caller != nil && caller.ID != userID {
		WriteError(w, http.StatusForbidden, "FORBIDDEN", service.ErrForbidden.Error(), nil)
		return
	}

	user, err := h.deps.Auth.ChangePassword(r.Context(), userID, payload.CurrentPassword, payload.NewPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"message": "senha alterada com sucesso",
		"user":    user,
	})
}

// AdminResetPassword redefine a senha de outro usuário; exige troca no próximo login.
func (h *Handler) AdminResetPassword(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}
	var payload struct {
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	caller := httpmiddleware.CallerFrom(r.Context())
	if err := h.deps.Auth.AdminResetPassword(r.Context(), caller, targetID, payload.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "senha redefinida; troca obrigatória no próximo acesso"})
}
