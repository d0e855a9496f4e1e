package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/decidiu/plataforma/internal/auth"
	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/util"
)

// PasswordPolicy define validade da senha permanente e da provisória.
type PasswordPolicy struct {
	MaxAge         time.Duration
	ProvisionalTTL time.Duration
}

// DefaultPasswordPolicy aplica 90 dias para a permanente e 24h para a provisória.
var DefaultPasswordPolicy = PasswordPolicy{
	MaxAge:         90 * 24 * time.Hour,
	ProvisionalTTL: 24 * time.Hour,
}

// ProvisionalCredential é a senha provisória em texto puro, devolvida uma única vez.
type ProvisionalCredential struct {
	Password  string
	ExpiresAt time.Time
	TTL       time.Duration
}

type lifecycleStore interface {
	LockUsuario(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	SetPermanentCredential(ctx context.Context, id uuid.UUID, hash string, changedAt, expiresAt time.Time) error
	SetProvisionalCredential(ctx context.Context, id uuid.UUID, hash *string, expiresAt *time.Time, used bool) error
	MarkMustChange(ctx context.Context, id uuid.UUID, must bool) error
	SyncInstrutoraSenha(ctx context.Context, usuarioID uuid.UUID, hash string) error
}

// PasswordManager controla emissão, validação e rotação de senhas.
// Todas as escritas usam o escopo transacional recebido do chamador.
type PasswordManager struct {
	policy   PasswordPolicy
	now      func() time.Time
	generate func() (string, error)
	hash     func(string) (string, error)
}

// NewPasswordManager cria o gerenciador com a política informada.
func NewPasswordManager(policy PasswordPolicy) *PasswordManager {
	if policy.MaxAge <= 0 {
		policy.MaxAge = DefaultPasswordPolicy.MaxAge
	}
	if policy.ProvisionalTTL <= 0 {
		policy.ProvisionalTTL = DefaultPasswordPolicy.ProvisionalTTL
	}
	return &PasswordManager{
		policy:   policy,
		now:      util.Now,
		generate: auth.GenerateProvisional,
		hash:     auth.Hash,
	}
}

// Policy expõe a política vigente.
func (m *PasswordManager) Policy() PasswordPolicy {
	return m.policy
}

// IssueProvisional gera e grava uma senha provisória e exige troca no próximo acesso.
func (m *PasswordManager) IssueProvisional(ctx context.Context, q lifecycleStore, userID uuid.UUID) (ProvisionalCredential, error) {
	u, err := q.LockUsuario(ctx, userID)
	if err != nil {
		return ProvisionalCredential{}, notFound(err)
	}
	if u.Status != repo.StatusActive {
		return ProvisionalCredential{}, ErrNotFound
	}

	plain, err := m.generate()
	if err != nil {
		return ProvisionalCredential{}, fmt.Errorf("gerar senha provisória: %w", err)
	}
	hash, err := m.hash(plain)
	if err != nil {
		return ProvisionalCredential{}, fmt.Errorf("hash senha provisória: %w", err)
	}

	expiresAt := m.now().Add(m.policy.ProvisionalTTL)
	if err := q.SetProvisionalCredential(ctx, u.ID, &hash, &expiresAt, false); err != nil {
		return ProvisionalCredential{}, err
	}
	if err := q.MarkMustChange(ctx, u.ID, true); err != nil {
		return ProvisionalCredential{}, err
	}

	return ProvisionalCredential{Password: plain, ExpiresAt: expiresAt, TTL: m.policy.ProvisionalTTL}, nil
}

// ValidateProvisional informa se o candidato autentica pela senha provisória. Não marca uso.
func (m *PasswordManager) ValidateProvisional(u repo.Usuario, candidate string) bool {
	return m.checkProvisional(u, candidate) == nil
}

// checkProvisional distingue o motivo da recusa; todos equivalem a ErrInvalidCredentials.
func (m *PasswordManager) checkProvisional(u repo.Usuario, candidate string) error {
	cred := u.Credencial
	if cred.ProvisoriaHash == nil || *cred.ProvisoriaHash == "" || candidate == "" {
		return ErrInvalidCredentials
	}
	ok, err := auth.Verify(candidate, *cred.ProvisoriaHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}
	if cred.ProvisoriaUsada {
		return ErrUsedProvisional
	}
	if cred.ProvisoriaExpiraEm == nil || !m.now().Before(*cred.ProvisoriaExpiraEm) {
		return ErrExpiredProvisional
	}
	return nil
}

// IsPermanentExpired indica senha permanente vencida; sem data de troca conta como vencida.
func (m *PasswordManager) IsPermanentExpired(u repo.Usuario) bool {
	changed := u.Credencial.AlteradaEm
	if changed == nil {
		return true
	}
	return !m.now().Before(changed.Add(m.policy.MaxAge))
}

// RotatePermanent grava nova senha permanente, limpa provisória, troca obrigatória e primeiro acesso.
func (m *PasswordManager) RotatePermanent(ctx context.Context, q lifecycleStore, userID uuid.UUID, newPlain string, changedAt time.Time) (repo.Usuario, error) {
	u, err := q.LockUsuario(ctx, userID)
	if err != nil {
		return repo.Usuario{}, notFound(err)
	}
	if err := util.ValidatePassword(newPlain, u.CPF); err != nil {
		return repo.Usuario{}, invalidField("new_password", err.Error())
	}

	hash, err := m.hash(newPlain)
	if err != nil {
		return repo.Usuario{}, fmt.Errorf("hash senha: %w", err)
	}

	if err := q.SetPermanentCredential(ctx, u.ID, hash, changedAt, changedAt.Add(m.policy.MaxAge)); err != nil {
		return repo.Usuario{}, err
	}
	if err := q.MarkMustChange(ctx, u.ID, false); err != nil {
		return repo.Usuario{}, err
	}
	if err := q.SetProvisionalCredential(ctx, u.ID, nil, nil, false); err != nil {
		return repo.Usuario{}, err
	}
	if u.Cargo.Specialized() == repo.SpecializedInstructor {
		if err := q.SyncInstrutoraSenha(ctx, u.ID, hash); err != nil {
			return repo.Usuario{}, err
		}
	}

	return u, nil
}

// AdminForceReset rotaciona como RotatePermanent mas mantém a troca obrigatória ligada.
func (m *PasswordManager) AdminForceReset(ctx context.Context, q lifecycleStore, userID uuid.UUID, newPlain string) (repo.Usuario, error) {
	u, err := m.RotatePermanent(ctx, q, userID, newPlain, m.now())
	if err != nil {
		return repo.Usuario{}, err
	}
	if err := q.MarkMustChange(ctx, u.ID, true); err != nil {
		return repo.Usuario{}, err
	}
	return u, nil
}
