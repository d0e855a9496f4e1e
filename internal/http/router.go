package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/decidiu/plataforma/internal/auth"
	"github.com/decidiu/plataforma/internal/config"
	httpmiddleware "github.com/decidiu/plataforma/internal/http/middleware"
	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/service"
)

// AuthAPI cobre o ciclo de credenciais exposto em /auth.
type AuthAPI interface {
	httpmiddleware.CallerResolver
	Login(ctx context.Context, nationalID, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, userID uuid.UUID, caller *service.Caller) error
	RecoverPassword(ctx context.Context, nationalID, birthDate string) (service.ProvisionalCredential, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) (repo.Usuario, error)
	AdminResetPassword(ctx context.Context, caller *service.Caller, targetID uuid.UUID, newPassword string) error
}

// UserAPI cobre o cadastro de profissionais.
type UserAPI interface {
	Create(ctx context.Context, caller *service.Caller, in service.CreateUserInput) (service.CreatedUser, error)
	Get(ctx context.Context, caller *service.Caller, id uuid.UUID) (service.UserDetail, error)
	List(ctx context.Context, caller *service.Caller, in service.ListUsersInput) (service.UserPage, error)
	Update(ctx context.Context, caller *service.Caller, id uuid.UUID, in service.UpdateUserInput) (repo.Usuario, error)
	SetStatus(ctx context.Context, caller *service.Caller, id uuid.UUID, status string) (repo.Usuario, error)
	Delete(ctx context.Context, caller *service.Caller, id uuid.UUID) error
	AttachDocument(ctx context.Context, caller *service.Caller, id uuid.UUID, body []byte, filename string) (string, error)
}

// AuditAPI expõe a consulta do log de auditoria.
type AuditAPI interface {
	List(ctx context.Context, query service.AuditQuery) ([]repo.AuditEntry, error)
}

// Pinger é satisfeito por *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger é satisfeito por *redis.Client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Deps reúne os colaboradores do roteador.
type Deps struct {
	DB    Pinger
	Redis RedisPinger
	JWT   *auth.JWTManager
	Auth  AuthAPI
	Users UserAPI
	Audit AuditAPI
}

type Handler struct {
	cfg           *config.Config
	deps          Deps
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	h := &Handler{
		cfg:           cfg,
		deps:          deps,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.IPRateLimit(h.publicLimiter))
		api.Use(httpmiddleware.ClientIP)

		identity := httpmiddleware.Identity(deps.Auth, deps.JWT, cfg.IdentityHeader)

		api.Route("/auth", func(a chi.Router) {
			a.Use(httpmiddleware.IPRateLimit(h.authLimiter))
			// login e recuperação ignoram credenciais de sessão antigas
			a.Post("/login", h.Login)
			a.Post("/recover-password", h.RecoverPassword)

			a.Group(func(s chi.Router) {
				s.Use(identity)
				s.Post("/logout", h.Logout)
				s.Post("/change-password", h.ChangePassword)
				s.With(httpmiddleware.RequireAdministrator).
					Post("/admin-reset-password/{userId}", h.AdminResetPassword)
			})
		})

		api.Group(func(private chi.Router) {
			private.Use(identity)
			private.Use(httpmiddleware.RequireManagement)
			private.Use(httpmiddleware.CallerRateLimit(h.authLimiter))

			private.Route("/users", func(u chi.Router) {
				u.Get("/", h.ListUsers)
				u.Post("/", h.CreateUser)
				u.Get("/{id}", h.GetUser)
				u.Put("/{id}", h.UpdateUser)
				u.Delete("/{id}", h.DeleteUser)
				u.Post("/{id}/documents", h.UploadDocument)
				u.With(httpmiddleware.RequireAdministrator).Put("/{id}/status", h.SetUserStatus)
			})
			private.Get("/audit-log", h.ListAudit)
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var dbErr, redisErr error
	if h.deps.DB != nil {
		dbErr = h.deps.DB.Ping(ctx)
	}
	if h.deps.Redis != nil {
		redisErr = h.deps.Redis.Ping(ctx).Err()
	}

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "identificador inválido", nil)
		return uuid.Nil, false
	}
	return id, true
}
