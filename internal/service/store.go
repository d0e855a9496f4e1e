package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/decidiu/plataforma/internal/db"
	"github.com/decidiu/plataforma/internal/repo"
)

// CredentialStore é dona do registro canônico do usuário e do seu estado de credenciais.
type CredentialStore interface {
	GetUsuario(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	LockUsuario(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	LockUsuarioByCPF(ctx context.Context, cpf string) (repo.Usuario, error)
	FindIdentityConflict(ctx context.Context, email, cpf string, exclude *uuid.UUID) (string, error)
	InsertUsuario(ctx context.Context, arg repo.InsertUsuarioParams) (repo.Usuario, error)
	UpdatePerfil(ctx context.Context, arg repo.UpdatePerfilParams) (repo.Usuario, error)
	ListUsuarios(ctx context.Context, filter repo.UsuarioFilter) ([]repo.Usuario, int, error)
	DeleteUsuario(ctx context.Context, id uuid.UUID) error
	SetCargo(ctx context.Context, id uuid.UUID, cargo repo.Role) error
	SetStatus(ctx context.Context, id uuid.UUID, status repo.Status) error
	SetPermanentCredential(ctx context.Context, id uuid.UUID, hash string, changedAt, expiresAt time.Time) error
	SetProvisionalCredential(ctx context.Context, id uuid.UUID, hash *string, expiresAt *time.Time, used bool) error
	ConsumeProvisional(ctx context.Context, id uuid.UUID) (bool, error)
	MarkMustChange(ctx context.Context, id uuid.UUID, must bool) error
	UpgradeSenhaHash(ctx context.Context, id uuid.UUID, hash string) error
}

// AuditStore persiste e consulta o log de auditoria.
type AuditStore interface {
	InsertAuditEntry(ctx context.Context, e repo.AuditEntry) error
	ListAuditEntries(ctx context.Context, filter repo.AuditFilter) ([]repo.AuditEntry, error)
}

// SpecializedStore persiste os registros especializados por cargo.
type SpecializedStore interface {
	UpsertInstrutora(ctx context.Context, in repo.Instrutora) (repo.Instrutora, error)
	UpsertAluna(ctx context.Context, a repo.Aluna) (repo.Aluna, error)
	SyncInstrutoraSenha(ctx context.Context, usuarioID uuid.UUID, hash string) error
	GetEspecializado(ctx context.Context, usuarioID uuid.UUID) (repo.Especializado, error)
	SetDocumentoURL(ctx context.Context, kind repo.SpecializedKind, usuarioID uuid.UUID, url string) error
}

// Queries reúne tudo que os serviços leem e escrevem dentro de um escopo.
type Queries interface {
	CredentialStore
	AuditStore
	SpecializedStore
}

// Store entrega leituras avulsas e escopos transacionais.
type Store interface {
	Read() Queries
	WithTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}

// PgStore implementa Store sobre pgxpool.
type PgStore struct {
	pool    *pgxpool.Pool
	queries *repo.Queries
}

// NewPgStore cria o Store padrão.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, queries: repo.New(pool)}
}

// Read devolve consultas fora de transação.
func (s *PgStore) Read() Queries {
	return s.queries
}

// WithTx executa fn em uma transação; erro em qualquer passo desfaz tudo.
func (s *PgStore) WithTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	return db.WithTx(ctx, s.pool, func(pctx context.Context, tx pgx.Tx) error {
		return fn(pctx, s.queries.WithTx(tx))
	})
}
