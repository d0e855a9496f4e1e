package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const instrutoraColumns = `
	id, usuario_id, nome, cpf, COALESCE(telefone, ''), COALESCE(email, ''),
	COALESCE(especialidade, ''), COALESCE(unidade_saude, ''),
	COALESCE(cep, ''), COALESCE(municipio, ''), COALESCE(logradouro, ''),
	COALESCE(bairro, ''), COALESCE(numero, ''), COALESCE(complemento, ''),
	COALESCE(senha_hash, ''), COALESCE(diploma_url, ''), created_at`

const alunaColumns = `
	id, usuario_id, nome, cpf, COALESCE(telefone, ''), COALESCE(email, ''),
	COALESCE(cep, ''), COALESCE(municipio, ''), COALESCE(logradouro, ''),
	COALESCE(bairro, ''), COALESCE(numero, ''), COALESCE(complemento, ''),
	enfermeira_instrutora_id, casos_concluidos, COALESCE(certificado_url, ''), created_at`

func scanInstrutora(row pgx.Row) (Instrutora, error) {
	var in Instrutora
	err := row.Scan(
		&in.ID, &in.UsuarioID, &in.Nome, &in.CPF, &in.Telefone, &in.Email,
		&in.Especialidade, &in.UnidadeSaude,
		&in.Endereco.CEP, &in.Endereco.Municipio, &in.Endereco.Logradouro,
		&in.Endereco.Bairro, &in.Endereco.Numero, &in.Endereco.Complemento,
		&in.SenhaHash, &in.DiplomaURL, &in.CreatedAt,
	)
	return in, err
}

func scanAluna(row pgx.Row) (Aluna, error) {
	var a Aluna
	err := row.Scan(
		&a.ID, &a.UsuarioID, &a.Nome, &a.CPF, &a.Telefone, &a.Email,
		&a.Endereco.CEP, &a.Endereco.Municipio, &a.Endereco.Logradouro,
		&a.Endereco.Bairro, &a.Endereco.Numero, &a.Endereco.Complemento,
		&a.InstrutoraID, &a.CasosConcluidos, &a.CertificadoURL, &a.CreatedAt,
	)
	return a, err
}

// UpsertInstrutora cria o registro de instrutora ou reassocia o existente com o mesmo CPF.
// Na reassociação os dados cadastrais são sobrescritos e o diploma do vínculo anterior é descartado.
func (q *Queries) UpsertInstrutora(ctx context.Context, in Instrutora) (Instrutora, error) {
	query := `
		INSERT INTO enfermeiras_instrutoras (
			id, usuario_id, nome, cpf, telefone, email, especialidade, unidade_saude,
			cep, municipio, logradouro, bairro, numero, complemento, senha_hash, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''),
			NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''),
			NULLIF($15, ''), $16, $16
		)
		ON CONFLICT (cpf) DO UPDATE
		   SET usuario_id = EXCLUDED.usuario_id, nome = EXCLUDED.nome,
		       telefone = EXCLUDED.telefone, email = EXCLUDED.email,
		       especialidade = EXCLUDED.especialidade, unidade_saude = EXCLUDED.unidade_saude,
		       cep = EXCLUDED.cep, municipio = EXCLUDED.municipio, logradouro = EXCLUDED.logradouro,
		       bairro = EXCLUDED.bairro, numero = EXCLUDED.numero, complemento = EXCLUDED.complemento,
		       senha_hash = EXCLUDED.senha_hash, diploma_url = NULL,
		       updated_at = EXCLUDED.updated_at
		RETURNING` + instrutoraColumns

	return scanInstrutora(q.db.QueryRow(ctx, query,
		in.ID, in.UsuarioID, in.Nome, in.CPF, in.Telefone, in.Email, in.Especialidade, in.UnidadeSaude,
		in.Endereco.CEP, in.Endereco.Municipio, in.Endereco.Logradouro, in.Endereco.Bairro, in.Endereco.Numero, in.Endereco.Complemento,
		in.SenhaHash, in.CreatedAt,
	))
}

// UpsertAluna cria o registro de aluna ou reassocia o existente com o mesmo CPF.
// Casos concluídos e a instrutora anterior (quando nenhuma é informada) permanecem; o certificado é descartado.
func (q *Queries) UpsertAluna(ctx context.Context, a Aluna) (Aluna, error) {
	query := `
		INSERT INTO enfermeiras_alunas (
			id, usuario_id, nome, cpf, telefone, email,
			cep, municipio, logradouro, bairro, numero, complemento,
			enfermeira_instrutora_id, casos_concluidos, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''),
			NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''),
			$13, 0, $14, $14
		)
		ON CONFLICT (cpf) DO UPDATE
		   SET usuario_id = EXCLUDED.usuario_id, nome = EXCLUDED.nome,
		       telefone = EXCLUDED.telefone, email = EXCLUDED.email,
		       cep = EXCLUDED.cep, municipio = EXCLUDED.municipio, logradouro = EXCLUDED.logradouro,
		       bairro = EXCLUDED.bairro, numero = EXCLUDED.numero, complemento = EXCLUDED.complemento,
		       enfermeira_instrutora_id = COALESCE(EXCLUDED.enfermeira_instrutora_id, enfermeiras_alunas.enfermeira_instrutora_id),
		       certificado_url = NULL,
		       updated_at = EXCLUDED.updated_at
		RETURNING` + alunaColumns

	return scanAluna(q.db.QueryRow(ctx, query,
		a.ID, a.UsuarioID, a.Nome, a.CPF, a.Telefone, a.Email,
		a.Endereco.CEP, a.Endereco.Municipio, a.Endereco.Logradouro, a.Endereco.Bairro, a.Endereco.Numero, a.Endereco.Complemento,
		a.InstrutoraID, a.CreatedAt,
	))
}

// SyncInstrutoraSenha replica o hash permanente na cópia da instrutora, quando existir.
func (q *Queries) SyncInstrutoraSenha(ctx context.Context, usuarioID uuid.UUID, hash string) error {
	_, err := q.db.Exec(ctx, `UPDATE enfermeiras_instrutoras SET senha_hash = $2, updated_at = NOW() WHERE usuario_id = $1`, usuarioID, hash)
	return err
}

// GetEspecializado devolve o registro especializado associado ao usuário.
func (q *Queries) GetEspecializado(ctx context.Context, usuarioID uuid.UUID) (Especializado, error) {
	in, err := scanInstrutora(q.db.QueryRow(ctx,
		`SELECT`+instrutoraColumns+` FROM enfermeiras_instrutoras WHERE usuario_id = $1`, usuarioID))
	switch {
	case err == nil:
		return Especializado{Instrutora: &in}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return Especializado{}, err
	}

	a, err := scanAluna(q.db.QueryRow(ctx,
		`SELECT`+alunaColumns+` FROM enfermeiras_alunas WHERE usuario_id = $1`, usuarioID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Especializado{}, ErrNotFound
		}
		return Especializado{}, err
	}
	return Especializado{Aluna: &a}, nil
}

// SetDocumentoURL grava a URL do documento profissional no registro especializado.
func (q *Queries) SetDocumentoURL(ctx context.Context, kind SpecializedKind, usuarioID uuid.UUID, url string) error {
	switch kind {
	case SpecializedInstructor:
		return q.execOne(ctx, `UPDATE enfermeiras_instrutoras SET diploma_url = $2, updated_at = NOW() WHERE usuario_id = $1`, usuarioID, url)
	case SpecializedStudent:
		return q.execOne(ctx, `UPDATE enfermeiras_alunas SET certificado_url = $2, updated_at = NOW() WHERE usuario_id = $1`, usuarioID, url)
	default:
		return fmt.Errorf("registro especializado inexistente para %s", kind)
	}
}
