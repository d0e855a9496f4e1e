package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indica ausência do registro solicitado.
var ErrNotFound = errors.New("registro não encontrado")

const uniqueViolation = "23505"

// Campos de identidade reportados em conflitos de unicidade.
const (
	FieldEmail = "email"
	FieldCPF   = "national_id"
)

// IdentityConflict traduz violação de unicidade de usuarios no campo colidido.
func IdentityConflict(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return "", false
	}
	switch pgErr.ConstraintName {
	case "usuarios_email_key":
		return FieldEmail, true
	case "usuarios_cpf_key":
		return FieldCPF, true
	default:
		return "", false
	}
}

// IsForeignKeyViolation indica referência a registro inexistente.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
