package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/decidiu/plataforma/internal/auth"
	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/util"
)

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// AuthService concentra autenticação, recuperação e troca de senha.
type AuthService struct {
	store     Store
	passwords *PasswordManager
	audit     *AuditLogger
	jwt       *auth.JWTManager
	redis     redisCommander
	now       func() time.Time
}

// NewAuthService cria novo serviço.
func NewAuthService(store Store, passwords *PasswordManager, audit *AuditLogger, jwtMgr *auth.JWTManager, redisClient redisCommander) *AuthService {
	return &AuthService{
		store:     store,
		passwords: passwords,
		audit:     audit,
		jwt:       jwtMgr,
		redis:     redisClient,
		now:       util.Now,
	}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult é a projeção devolvida após autenticação bem-sucedida.
type LoginResult struct {
	User               repo.Usuario
	MustChangePassword bool
	PasswordExpired    bool
	UsingTemporary     bool
	Token              *auth.AccessToken
}

// Login autentica pelo CPF com senha permanente ou provisória.
func (s *AuthService) Login(ctx context.Context, nationalID, password string) (*LoginResult, error) {
	if strings.TrimSpace(nationalID) == "" || password == "" {
		return nil, invalid("CPF e senha são obrigatórios")
	}
	cpf := util.NormalizeCPF(nationalID)
	if cpf == "" {
		log.Warn().Msg("login: CPF sem dígitos")
		return nil, ErrInvalidCredentials
	}

	var result *LoginResult
	err := s.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		user, err := q.LockUsuarioByCPF(ctx, cpf)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				log.Warn().Msg("login: usuário não encontrado")
				return ErrInvalidCredentials
			}
			return err
		}
		if user.Status != repo.StatusActive {
			log.Warn().Str("usuario_id", user.ID.String()).Str("status", string(user.Status)).Msg("login: conta indisponível")
			return ErrInvalidCredentials
		}

		viaProvisional := false
		ok, err := auth.Verify(password, user.Credencial.SenhaHash)
		if err != nil {
			log.Warn().Err(err).Str("usuario_id", user.ID.String()).Msg("login: verify password failed")
			ok = false
		}
		if ok {
			if auth.NeedsRehash(user.Credencial.SenhaHash) {
				if err := s.upgradeHash(ctx, q, user.ID, password); err != nil {
					return err
				}
			}
		} else {
			if err := s.passwords.checkProvisional(user, password); err != nil {
				log.Warn().Err(err).Str("usuario_id", user.ID.String()).Msg("login: senha inválida")
				return err
			}
			consumed, err := q.ConsumeProvisional(ctx, user.ID)
			if err != nil {
				return err
			}
			if !consumed {
				return ErrUsedProvisional
			}
			viaProvisional = true
		}

		description := "Login realizado"
		if viaProvisional {
			description = "Login realizado com senha provisória"
		}
		if err := s.audit.Record(ctx, q, AuditEvent{
			ActorID:     actor(user.ID),
			Action:      repo.ActionLogin,
			Table:       "usuarios",
			RecordID:    user.ID.String(),
			Description: description,
		}); err != nil {
			return err
		}

		expired := s.passwords.IsPermanentExpired(user)
		result = &LoginResult{
			User:               user,
			PasswordExpired:    expired,
			UsingTemporary:     viaProvisional,
			MustChangePassword: user.Credencial.TrocaObrigatoria || viaProvisional || expired,
		}

		if s.jwt != nil {
			token, err := s.jwt.GenerateAccessToken(user.ID.String(), string(user.Cargo), s.now())
			if err != nil {
				return fmt.Errorf("emitir token: %w", err)
			}
			result.Token = &token
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("usuario_id", result.User.ID.String()).Bool("provisoria", result.UsingTemporary).
		Bool("troca_obrigatoria", result.MustChangePassword).Msg("login realizado")
	return result, nil
}

func (s *AuthService) upgradeHash(ctx context.Context, q Queries, id uuid.UUID, password string) error {
	hash, err := s.passwords.hash(password)
	if err != nil {
		return fmt.Errorf("hash senha: %w", err)
	}
	return q.UpgradeSenhaHash(ctx, id, hash)
}

// Logout registra a saída e encerra o token de acesso apresentado, quando houver.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, caller *Caller) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		user, err := q.GetUsuario(ctx, userID)
		if err != nil {
			return notFound(err)
		}
		return s.audit.Record(ctx, q, AuditEvent{
			ActorID:     actor(user.ID),
			Action:      repo.ActionLogout,
			Table:       "usuarios",
			RecordID:    user.ID.String(),
			Description: "Logout realizado",
		})
	})
	if err != nil {
		return err
	}

	if caller != nil && caller.ID == userID && caller.TokenID != "" {
		s.revokeToken(ctx, caller.TokenID, caller.TokenExpiresAt)
	}
	return nil
}

func (s *AuthService) revokeToken(ctx context.Context, jti string, expiresAt time.Time) {
	if s.redis == nil {
		return
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.redis.Set(ctx, auth.SessionRevokedKey(jti), "revoked", ttl).Err(); err != nil {
		log.Error().Err(err).Msg("logout: falha ao revogar token")
	}
}

// revokeUserSessions invalida todo token do usuário emitido antes de agora.
func (s *AuthService) revokeUserSessions(ctx context.Context, userID uuid.UUID) {
	if s.redis == nil || s.jwt == nil {
		return
	}
	key := auth.SessionsRevokedBeforeKey(userID.String())
	if err := s.redis.Set(ctx, key, s.now().Unix(), s.jwt.AccessTTL()).Err(); err != nil {
		log.Error().Err(err).Str("usuario_id", userID.String()).Msg("sessões: falha ao revogar tokens do usuário")
	}
}

// IsTokenRevoked consulta se o token foi encerrado por logout ou emitido antes
// da última troca de senha do usuário.
func (s *AuthService) IsTokenRevoked(ctx context.Context, claims *auth.Claims) (bool, error) {
	if s.redis == nil || claims == nil {
		return false, nil
	}
	if claims.ID != "" {
		n, err := s.redis.Exists(ctx, auth.SessionRevokedKey(claims.ID)).Result()
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}

	raw, err := s.redis.Get(ctx, auth.SessionsRevokedBeforeKey(claims.Subject)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("marcador de sessão inválido: %w", err)
	}
	if claims.IssuedAt == nil {
		return true, nil
	}
	return claims.IssuedAt.Unix() < cutoff, nil
}

// RecoverPassword emite senha provisória quando CPF e data de nascimento conferem com um usuário ativo.
func (s *AuthService) RecoverPassword(ctx context.Context, nationalID, birthDate string) (ProvisionalCredential, error) {
	if strings.TrimSpace(nationalID) == "" || birthDate == "" {
		return ProvisionalCredential{}, invalid("CPF e data de nascimento são obrigatórios")
	}
	cpf := util.NormalizeCPF(nationalID)
	if cpf == "" {
		log.Warn().Msg("recuperação de senha: CPF sem dígitos")
		return ProvisionalCredential{}, ErrNotFound
	}
	birth, err := util.ParseDate(birthDate)
	if err != nil {
		return ProvisionalCredential{}, invalidField("birth_date", err.Error())
	}

	var cred ProvisionalCredential
	err = s.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		user, err := q.LockUsuarioByCPF(ctx, cpf)
		if err != nil {
			return notFound(err)
		}
		if user.Status != repo.StatusActive || !sameDate(user.DataNascimento, birth) {
			return ErrNotFound
		}

		cred, err = s.passwords.IssueProvisional(ctx, q, user.ID)
		if err != nil {
			return err
		}

		return s.audit.Record(ctx, q, AuditEvent{
			ActorID:     actor(user.ID),
			Action:      repo.ActionPasswordRecovery,
			Table:       "usuarios",
			RecordID:    user.ID.String(),
			Description: "Senha provisória gerada para recuperação de acesso",
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Msg("recuperação de senha: dados não conferem")
		}
		return ProvisionalCredential{}, err
	}
	return cred, nil
}

// ChangePassword troca a senha pelo próprio usuário; current, quando informado, precisa conferir.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) (repo.Usuario, error) {
	if newPassword == "" {
		return repo.Usuario{}, invalidField("new_password", "nova senha obrigatória")
	}

	var updated repo.Usuario
	err := s.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		user, err := q.LockUsuario(ctx, userID)
		if err != nil {
			return notFound(err)
		}

		if current != "" {
			ok, err := auth.Verify(current, user.Credencial.SenhaHash)
			if err != nil || !ok {
				if perr := s.passwords.checkProvisional(user, current); perr != nil {
					return ErrInvalidCredentials
				}
			}
		}

		if _, err := s.passwords.RotatePermanent(ctx, q, user.ID, newPassword, s.now()); err != nil {
			return err
		}

		if err := s.audit.Record(ctx, q, AuditEvent{
			ActorID:     actor(user.ID),
			Action:      repo.ActionPasswordChange,
			Table:       "usuarios",
			RecordID:    user.ID.String(),
			Description: "Senha alterada pelo próprio usuário",
		}); err != nil {
			return err
		}

		updated, err = q.GetUsuario(ctx, user.ID)
		return err
	})
	if err != nil {
		return repo.Usuario{}, err
	}
	s.revokeUserSessions(ctx, userID)
	return updated, nil
}

// AdminResetPassword redefine a senha de outro usuário e exige troca no próximo login.
func (s *AuthService) AdminResetPassword(ctx context.Context, caller *Caller, targetID uuid.UUID, newPassword string) error {
	if err := CanAdminister(caller); err != nil {
		return err
	}
	if newPassword == "" {
		return invalidField("new_password", "nova senha obrigatória")
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		target, err := s.passwords.AdminForceReset(ctx, q, targetID, newPassword)
		if err != nil {
			return err
		}
		return s.audit.Record(ctx, q, AuditEvent{
			ActorID:     actor(caller.ID),
			Action:      repo.ActionAdminPasswordReset,
			Table:       "usuarios",
			RecordID:    target.ID.String(),
			Description: fmt.Sprintf("Senha de %s redefinida pelo administrador", target.NomeCompleto),
		})
	})
	if err != nil {
		return err
	}
	s.revokeUserSessions(ctx, targetID)
	return nil
}

// ResolveCaller carrega o usuário ativo que origina a requisição.
func (s *AuthService) ResolveCaller(ctx context.Context, userID uuid.UUID) (*Caller, error) {
	user, err := s.store.Read().GetUsuario(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	if user.Status != repo.StatusActive {
		return nil, ErrNotFound
	}
	return CallerFromUser(user), nil
}

func sameDate(stored, given *time.Time) bool {
	if stored == nil || given == nil {
		return false
	}
	return stored.Format("2006-01-02") == given.Format("2006-01-02")
}
