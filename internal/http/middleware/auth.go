package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/decidiu/plataforma/internal/auth"
	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/service"
)

type contextKey string

const contextKeyCaller contextKey = "caller"

// maxIdentityBody limita o corpo lido para descobrir acting_user_id.
const maxIdentityBody = 1 << 20

// CallerResolver carrega o usuário que origina a requisição.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, userID uuid.UUID) (*service.Caller, error)
	IsTokenRevoked(ctx context.Context, claims *auth.Claims) (bool, error)
}

// ClientIP registra o IP de origem no contexto para a trilha de auditoria.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(service.WithClientIP(r.Context(), realIPFromRequest(r))))
	})
}

// Identity resolve o chamador uma única vez por requisição e injeta no contexto.
// Ordem: Bearer JWT, cabeçalho de identidade, query acting_user_id, corpo JSON acting_user_id.
// Sem identificação a requisição segue anônima; RequireRoles decide o acesso.
func Identity(resolver CallerResolver, jwtManager *auth.JWTManager, header string) func(http.Handler) http.Handler {
	if header == "" {
		header = "X-User-Id"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := service.WithClientIP(r.Context(), realIPFromRequest(r))

			if token, ok := bearerToken(r); ok {
				caller, err := fromToken(ctx, resolver, jwtManager, token)
				if err != nil {
					log.Warn().Err(err).Msg("identidade: token rejeitado")
					writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
				return
			}

			raw := strings.TrimSpace(r.Header.Get(header))
			if raw == "" {
				raw = strings.TrimSpace(r.URL.Query().Get("acting_user_id"))
			}
			if raw == "" {
				var err error
				if raw, err = actingUserFromBody(r); err != nil {
					writeError(w, http.StatusBadRequest, "VALIDATION", "corpo da requisição inválido")
					return
				}
			}
			if raw == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "identificação inválida")
				return
			}
			caller, err := resolver.ResolveCaller(ctx, id)
			if err != nil {
				if !errors.Is(err, service.ErrNotFound) {
					log.Error().Err(err).Msg("identidade: falha ao carregar usuário")
					writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
					return
				}
				writeError(w, http.StatusUnauthorized, "AUTH", "usuário não identificado")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func fromToken(ctx context.Context, resolver CallerResolver, jwtManager *auth.JWTManager, token string) (*service.Caller, error) {
	if jwtManager == nil {
		return nil, errors.New("jwt não configurado")
	}
	claims, err := jwtManager.ParseAndValidate(token)
	if err != nil {
		return nil, err
	}
	revoked, err := resolver.IsTokenRevoked(ctx, claims)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, errors.New("token revogado")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, err
	}
	caller, err := resolver.ResolveCaller(ctx, id)
	if err != nil {
		return nil, err
	}
	caller.TokenID = claims.ID
	if claims.ExpiresAt != nil {
		caller.TokenExpiresAt = claims.ExpiresAt.Time
	}
	return caller, nil
}

// actingUserFromBody lê acting_user_id do corpo JSON e devolve o corpo intacto para o handler.
func actingUserFromBody(r *http.Request) (string, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return "", nil
	}
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIdentityBody))
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var payload struct {
		ActingUserID string `json:"acting_user_id"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &payload) != nil {
		// o handler responde pelo JSON inválido
		return "", nil
	}
	return strings.TrimSpace(payload.ActingUserID), nil
}

// WithCaller injeta o chamador resolvido no contexto.
func WithCaller(ctx context.Context, caller *service.Caller) context.Context {
	return context.WithValue(ctx, contextKeyCaller, caller)
}

// CallerFrom recupera o chamador do contexto (nil quando anônimo).
func CallerFrom(ctx context.Context) *service.Caller {
	val, _ := ctx.Value(contextKeyCaller).(*service.Caller)
	return val
}

// RequireRoles exige chamador identificado (401) com um dos cargos (403).
// Sem cargos informados basta estar identificado.
func RequireRoles(roles ...repo.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch err := service.Authorize(CallerFrom(r.Context()), roles...); {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, service.ErrUnauthorized):
				writeError(w, http.StatusUnauthorized, "AUTH", err.Error())
			default:
				writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
			}
		})
	}
}

// RequireManagement restringe a Administrador, Coordenador e Enfermeiro(a) Instrutor(a).
func RequireManagement(next http.Handler) http.Handler {
	return RequireRoles(repo.ManagementRoles...)(next)
}

// RequireAdministrator restringe a administradores.
func RequireAdministrator(next http.Handler) http.Handler {
	return RequireRoles(repo.RoleAdministrator)(next)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": message,
		"code":  code,
	})
}
