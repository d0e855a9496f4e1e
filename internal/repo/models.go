package repo

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Endereco agrupa os campos de endereço compartilhados entre usuário e registros especializados.
type Endereco struct {
	CEP         string `json:"cep,omitempty"`
	Municipio   string `json:"municipality,omitempty"`
	Logradouro  string `json:"street,omitempty"`
	Bairro      string `json:"district,omitempty"`
	Numero      string `json:"number,omitempty"`
	Complemento string `json:"complement,omitempty"`
}

// Credencial concentra o estado de senha permanente e provisória do usuário.
type Credencial struct {
	SenhaHash          string
	AlteradaEm         *time.Time
	ExpiraEm           *time.Time
	TrocaObrigatoria   bool
	ProvisoriaHash     *string
	ProvisoriaExpiraEm *time.Time
	ProvisoriaUsada    bool
}

// Usuario é a identidade canônica da plataforma.
type Usuario struct {
	ID                  uuid.UUID  `json:"id"`
	NomeCompleto        string     `json:"full_name"`
	Email               string     `json:"email"`
	CPF                 string     `json:"national_id"`
	Telefone            string     `json:"phone,omitempty"`
	DataNascimento      *time.Time `json:"birth_date,omitempty"`
	Profissao           string     `json:"profession,omitempty"`
	VinculoEmpregaticio string     `json:"employment_bond,omitempty"`
	Endereco            Endereco   `json:"address"`
	Cargo               Role       `json:"role"`
	Status              Status     `json:"status"`
	PrimeiroAcesso      bool       `json:"first_access"`
	CriadoPor           *uuid.UUID `json:"created_by,omitempty"`
	Credencial          Credencial `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// InsertUsuarioParams descreve a linha inicial de um usuário.
type InsertUsuarioParams struct {
	ID                  uuid.UUID
	NomeCompleto        string
	Email               string
	CPF                 string
	Telefone            string
	DataNascimento      *time.Time
	Profissao           string
	VinculoEmpregaticio string
	Endereco            Endereco
	Cargo               Role
	CriadoPor           *uuid.UUID
	SenhaHash           string
	SenhaAlteradaEm     time.Time
	SenhaExpiraEm       time.Time
	Now                 time.Time
}

// UpdatePerfilParams altera apenas dados cadastrais (nunca credenciais, cargo ou status).
type UpdatePerfilParams struct {
	ID                  uuid.UUID
	NomeCompleto        string
	Email               string
	Telefone            string
	DataNascimento      *time.Time
	Profissao           string
	VinculoEmpregaticio string
	Endereco            Endereco
	Now                 time.Time
}

// UsuarioFilter parametriza a listagem de usuários.
type UsuarioFilter struct {
	Search string
	Cargo  Role
	Status Status
	Limit  int
	Offset int
}

// AuditEntry é uma linha imutável do log de auditoria.
type AuditEntry struct {
	ID              string          `json:"id"`
	UsuarioID       *uuid.UUID      `json:"acting_user_id,omitempty"`
	UsuarioNome     string          `json:"acting_user_name,omitempty"`
	Acao            AuditAction     `json:"action"`
	TabelaAfetada   string          `json:"affected_table,omitempty"`
	RegistroID      string          `json:"affected_record_id,omitempty"`
	Descricao       string          `json:"description,omitempty"`
	DadosAnteriores json.RawMessage `json:"before,omitempty"`
	DadosNovos      json.RawMessage `json:"after,omitempty"`
	IPAddress       string          `json:"ip_address,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AuditFilter parametriza a consulta do log de auditoria.
type AuditFilter struct {
	UsuarioID *uuid.UUID
	Acao      AuditAction
	Limit     int
}

// Instrutora é o registro especializado de Enfermeiro(a) Instrutor(a).
type Instrutora struct {
	ID            uuid.UUID  `json:"id"`
	UsuarioID     *uuid.UUID `json:"user_id,omitempty"`
	Nome          string     `json:"full_name"`
	CPF           string     `json:"national_id"`
	Telefone      string     `json:"phone,omitempty"`
	Email         string     `json:"email,omitempty"`
	Especialidade string     `json:"specialty,omitempty"`
	UnidadeSaude  string     `json:"workplace,omitempty"`
	Endereco      Endereco   `json:"address"`
	SenhaHash     string     `json:"-"`
	DiplomaURL    string     `json:"diploma_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Aluna é o registro especializado de Enfermeiro(a) Aluno(a).
type Aluna struct {
	ID              uuid.UUID  `json:"id"`
	UsuarioID       *uuid.UUID `json:"user_id,omitempty"`
	Nome            string     `json:"full_name"`
	CPF             string     `json:"national_id"`
	Telefone        string     `json:"phone,omitempty"`
	Email           string     `json:"email,omitempty"`
	Endereco        Endereco   `json:"address"`
	InstrutoraID    *uuid.UUID `json:"supervising_instructor_id,omitempty"`
	CasosConcluidos int        `json:"completed_cases"`
	CertificadoURL  string     `json:"certificate_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Especializado é a união dos registros especializados; no máximo um campo é preenchido.
type Especializado struct {
	Instrutora *Instrutora `json:"instructor,omitempty"`
	Aluna      *Aluna      `json:"student,omitempty"`
}

// Kind informa qual variante está presente.
func (e Especializado) Kind() SpecializedKind {
	switch {
	case e.Instrutora != nil:
		return SpecializedInstructor
	case e.Aluna != nil:
		return SpecializedStudent
	default:
		return SpecializedNone
	}
}
