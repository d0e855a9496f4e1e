package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/decidiu/plataforma/internal/service"
	"github.com/decidiu/plataforma/internal/storage"
)

// SuccessEnvelope padroniza respostas com dados.
type SuccessEnvelope struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

// ErrorEnvelope padroniza respostas de erro.
type ErrorEnvelope struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON escreve envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{OK: true, Data: data})
}

// WriteError escreve envelope de erro e mantém formato consistente.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Error: message, Code: code, Details: details})
}

// writeServiceError traduz os erros do domínio; o restante vira 500 sem detalhes internos.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *service.ValidationError
		derr *service.DuplicateIdentityError
	)
	switch {
	case errors.As(err, &verr):
		var details any
		if len(verr.Fields) > 0 {
			details = verr.Fields
		}
		WriteError(w, http.StatusBadRequest, "VALIDATION", verr.Message, details)
	case errors.As(err, &derr):
		WriteError(w, http.StatusConflict, "CONFLICT", derr.Error(), map[string]string{"field": derr.Field})
	case errors.Is(err, service.ErrInvalidCredentials):
		// expirada, usada ou senha errada: a mesma mensagem para todos
		WriteError(w, http.StatusUnauthorized, "AUTH", service.ErrInvalidCredentials.Error(), nil)
	case errors.Is(err, service.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "AUTH", err.Error(), nil)
	case errors.Is(err, service.ErrForbidden):
		WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrNoSpecializedRecord):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, storage.ErrNotConfigured):
		WriteError(w, http.StatusServiceUnavailable, "STORAGE", "armazenamento de documentos indisponível", nil)
	default:
		log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("erro inesperado")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return false
	}
	return true
}
