package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const selectUsuario = `
	SELECT id, nome_completo, email, cpf, COALESCE(telefone, ''), data_nascimento,
	       COALESCE(profissao, ''), COALESCE(vinculo_empregaticio, ''),
	       COALESCE(cep, ''), COALESCE(municipio, ''), COALESCE(logradouro, ''),
	       COALESCE(bairro, ''), COALESCE(numero, ''), COALESCE(complemento, ''),
	       cargo, status, primeiro_acesso, criado_por,
	       senha_hash, senha_alterada_em, senha_expira_em, troca_obrigatoria,
	       senha_provisoria_hash, senha_provisoria_expira_em, senha_provisoria_usada,
	       created_at, updated_at
	  FROM usuarios`

// GetUsuario busca usuário pelo id.
func (q *Queries) GetUsuario(ctx context.Context, id uuid.UUID) (Usuario, error) {
	return scanUsuario(q.db.QueryRow(ctx, selectUsuario+` WHERE id = $1`, id))
}

// LockUsuario busca usuário pelo id bloqueando a linha até o fim da transação.
func (q *Queries) LockUsuario(ctx context.Context, id uuid.UUID) (Usuario, error) {
	return scanUsuario(q.db.QueryRow(ctx, selectUsuario+` WHERE id = $1 FOR UPDATE`, id))
}

// LockUsuarioByCPF busca usuário pelo CPF normalizado bloqueando a linha.
func (q *Queries) LockUsuarioByCPF(ctx context.Context, cpf string) (Usuario, error) {
	return scanUsuario(q.db.QueryRow(ctx, selectUsuario+` WHERE cpf = $1 FOR UPDATE`, cpf))
}

// FindIdentityConflict devolve o campo já usado por outro usuário ("" quando livre).
func (q *Queries) FindIdentityConflict(ctx context.Context, email, cpf string, exclude *uuid.UUID) (string, error) {
	const query = `
		SELECT CASE WHEN cpf = $2 THEN 'national_id' ELSE 'email' END
		  FROM usuarios
		 WHERE (cpf = $2 OR LOWER(email) = LOWER($1))
		   AND ($3::uuid IS NULL OR id <> $3)
		 ORDER BY CASE WHEN cpf = $2 THEN 0 ELSE 1 END
		 LIMIT 1`

	var field string
	if err := q.db.QueryRow(ctx, query, email, cpf, exclude).Scan(&field); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return field, nil
}

// InsertUsuario grava a linha inicial de um usuário com troca obrigatória e primeiro acesso.
func (q *Queries) InsertUsuario(ctx context.Context, arg InsertUsuarioParams) (Usuario, error) {
	const query = `
		INSERT INTO usuarios (
			id, nome_completo, email, cpf, telefone, data_nascimento, profissao, vinculo_empregaticio,
			cep, municipio, logradouro, bairro, numero, complemento,
			cargo, status, primeiro_acesso, criado_por,
			senha_hash, senha_alterada_em, senha_expira_em, troca_obrigatoria,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''),
			NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''),
			$15, 'active', TRUE, $16,
			$17, $18, $19, TRUE,
			$20, $20
		)
		RETURNING id`

	var id uuid.UUID
	err := q.db.QueryRow(ctx, query,
		arg.ID, arg.NomeCompleto, arg.Email, arg.CPF, arg.Telefone, arg.DataNascimento, arg.Profissao, arg.VinculoEmpregaticio,
		arg.Endereco.CEP, arg.Endereco.Municipio, arg.Endereco.Logradouro, arg.Endereco.Bairro, arg.Endereco.Numero, arg.Endereco.Complemento,
		string(arg.Cargo), arg.CriadoPor,
		arg.SenhaHash, arg.SenhaAlteradaEm, arg.SenhaExpiraEm,
		arg.Now,
	).Scan(&id)
	if err != nil {
		return Usuario{}, err
	}
	return q.GetUsuario(ctx, id)
}

// UpdatePerfil altera dados cadastrais do usuário.
func (q *Queries) UpdatePerfil(ctx context.Context, arg UpdatePerfilParams) (Usuario, error) {
	const query = `
		UPDATE usuarios
		   SET nome_completo = $2, email = $3, telefone = NULLIF($4, ''), data_nascimento = $5,
		       profissao = NULLIF($6, ''), vinculo_empregaticio = NULLIF($7, ''),
		       cep = NULLIF($8, ''), municipio = NULLIF($9, ''), logradouro = NULLIF($10, ''),
		       bairro = NULLIF($11, ''), numero = NULLIF($12, ''), complemento = NULLIF($13, ''),
		       updated_at = $14
		 WHERE id = $1`

	tag, err := q.db.Exec(ctx, query,
		arg.ID, arg.NomeCompleto, arg.Email, arg.Telefone, arg.DataNascimento,
		arg.Profissao, arg.VinculoEmpregaticio,
		arg.Endereco.CEP, arg.Endereco.Municipio, arg.Endereco.Logradouro,
		arg.Endereco.Bairro, arg.Endereco.Numero, arg.Endereco.Complemento,
		arg.Now,
	)
	if err != nil {
		return Usuario{}, err
	}
	if tag.RowsAffected() == 0 {
		return Usuario{}, ErrNotFound
	}
	return q.GetUsuario(ctx, arg.ID)
}

// SetCargo altera o cargo do usuário.
func (q *Queries) SetCargo(ctx context.Context, id uuid.UUID, cargo Role) error {
	return q.execOne(ctx, `UPDATE usuarios SET cargo = $2, updated_at = NOW() WHERE id = $1`, id, string(cargo))
}

// SetStatus altera a situação da conta.
func (q *Queries) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	return q.execOne(ctx, `UPDATE usuarios SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
}

// SetPermanentCredential grava a senha permanente e encerra o primeiro acesso.
func (q *Queries) SetPermanentCredential(ctx context.Context, id uuid.UUID, hash string, changedAt, expiresAt time.Time) error {
	const query = `
		UPDATE usuarios
		   SET senha_hash = $2, senha_alterada_em = $3, senha_expira_em = $4,
		       primeiro_acesso = FALSE, updated_at = $3
		 WHERE id = $1`
	return q.execOne(ctx, query, id, hash, changedAt, expiresAt)
}

// SetProvisionalCredential grava (ou limpa, com hash nil) a senha provisória.
func (q *Queries) SetProvisionalCredential(ctx context.Context, id uuid.UUID, hash *string, expiresAt *time.Time, used bool) error {
	const query = `
		UPDATE usuarios
		   SET senha_provisoria_hash = $2, senha_provisoria_expira_em = $3, senha_provisoria_usada = $4,
		       updated_at = NOW()
		 WHERE id = $1`
	return q.execOne(ctx, query, id, hash, expiresAt, used)
}

// ConsumeProvisional marca a senha provisória como usada; false se já estava usada ou ausente.
func (q *Queries) ConsumeProvisional(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `
		UPDATE usuarios
		   SET senha_provisoria_usada = TRUE, updated_at = NOW()
		 WHERE id = $1 AND senha_provisoria_hash IS NOT NULL AND senha_provisoria_usada = FALSE`
	tag, err := q.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkMustChange liga ou desliga a troca obrigatória de senha.
func (q *Queries) MarkMustChange(ctx context.Context, id uuid.UUID, must bool) error {
	return q.execOne(ctx, `UPDATE usuarios SET troca_obrigatoria = $2, updated_at = NOW() WHERE id = $1`, id, must)
}

// DeleteUsuario remove o usuário; registros especializados ficam órfãos.
func (q *Queries) DeleteUsuario(ctx context.Context, id uuid.UUID) error {
	return q.execOne(ctx, `DELETE FROM usuarios WHERE id = $1`, id)
}

// ListUsuarios lista usuários com filtros e total para paginação.
func (q *Queries) ListUsuarios(ctx context.Context, filter UsuarioFilter) ([]Usuario, int, error) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(LOWER(nome_completo) LIKE $%d OR LOWER(email) LIKE $%d OR cpf LIKE $%d)", n, n, n))
	}
	if filter.Cargo != "" {
		args = append(args, string(filter.Cargo))
		conds = append(conds, fmt.Sprintf("cargo = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM usuarios`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := selectUsuario + where + fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Usuario
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (q *Queries) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := q.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUsuario(row pgx.Row) (Usuario, error) {
	var (
		u      Usuario
		cargo  string
		status string
	)
	err := row.Scan(
		&u.ID, &u.NomeCompleto, &u.Email, &u.CPF, &u.Telefone, &u.DataNascimento,
		&u.Profissao, &u.VinculoEmpregaticio,
		&u.Endereco.CEP, &u.Endereco.Municipio, &u.Endereco.Logradouro,
		&u.Endereco.Bairro, &u.Endereco.Numero, &u.Endereco.Complemento,
		&cargo, &status, &u.PrimeiroAcesso, &u.CriadoPor,
		&u.Credencial.SenhaHash, &u.Credencial.AlteradaEm, &u.Credencial.ExpiraEm, &u.Credencial.TrocaObrigatoria,
		&u.Credencial.ProvisoriaHash, &u.Credencial.ProvisoriaExpiraEm, &u.Credencial.ProvisoriaUsada,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	u.Cargo = Role(cargo)
	u.Status = Status(status)
	return u, nil
}

// UpgradeSenhaHash troca o formato do hash permanente sem alterar datas de validade.
func (q *Queries) UpgradeSenhaHash(ctx context.Context, id uuid.UUID, hash string) error {
	return q.execOne(ctx, `UPDATE usuarios SET senha_hash = $2 WHERE id = $1`, id, hash)
}
