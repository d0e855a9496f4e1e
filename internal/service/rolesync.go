package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/util"
)

// CreateUserInput reúne os campos aceitos na criação de usuário.
type CreateUserInput struct {
	FullName       string        `json:"full_name"`
	Email          string        `json:"email"`
	NationalID     string        `json:"national_id"`
	Phone          string        `json:"phone"`
	BirthDate      string        `json:"birth_date"`
	Profession     string        `json:"profession"`
	EmploymentBond string        `json:"employment_bond"`
	Address        repo.Endereco `json:"address"`
	Role           string        `json:"role"`
	Password       string        `json:"password"`
	Specialty      string        `json:"specialty"`
	Workplace      string        `json:"workplace"`
	SupervisorID   *uuid.UUID    `json:"supervising_instructor_id"`
	CreatedBy      *uuid.UUID    `json:"-"`
}

// Validate aplica as regras de campos obrigatórios e formatos.
func (in CreateUserInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FullName, validation.Required.Error("nome obrigatório"), validation.RuneLength(3, 200).Error("nome deve ter entre 3 e 200 caracteres")),
		validation.Field(&in.Email, util.EmailRules...),
		validation.Field(&in.NationalID, validation.Required.Error("CPF obrigatório")),
		validation.Field(&in.Role, validation.Required.Error("cargo obrigatório")),
		validation.Field(&in.Password, validation.Required.Error("senha obrigatória")),
	)
}

// CreatedUser é o resultado do fan-out de criação.
type CreatedUser struct {
	User        repo.Usuario       `json:"user"`
	Specialized repo.Especializado `json:"specialized"`
}

// RoleSyncEngine cria usuários e materializa o registro especializado exigido pelo cargo.
type RoleSyncEngine struct {
	store     Store
	audit     *AuditLogger
	passwords *PasswordManager
	now       func() time.Time
}

// NewRoleSyncEngine cria o motor de sincronização por cargo.
func NewRoleSyncEngine(store Store, audit *AuditLogger, passwords *PasswordManager) *RoleSyncEngine {
	return &RoleSyncEngine{store: store, audit: audit, passwords: passwords, now: util.Now}
}

// CreateUser grava usuário, registro especializado e auditoria em uma única transação.
func (e *RoleSyncEngine) CreateUser(ctx context.Context, in CreateUserInput) (CreatedUser, error) {
	if err := in.Validate(); err != nil {
		return CreatedUser{}, fromValidation(err)
	}

	params, err := e.prepare(in)
	if err != nil {
		return CreatedUser{}, err
	}

	var out CreatedUser
	err = e.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		field, err := q.FindIdentityConflict(ctx, params.Email, params.CPF, nil)
		if err != nil {
			return err
		}
		if field != "" {
			return &DuplicateIdentityError{Field: field}
		}

		user, err := q.InsertUsuario(ctx, params)
		if err != nil {
			if field, ok := repo.IdentityConflict(err); ok {
				return &DuplicateIdentityError{Field: field}
			}
			return err
		}

		specialized, err := e.materialize(ctx, q, user, params.SenhaHash, in)
		if err != nil {
			return err
		}

		if in.CreatedBy != nil {
			if err := e.audit.Record(ctx, q, AuditEvent{
				ActorID:     in.CreatedBy,
				Action:      repo.ActionUserCreated,
				Table:       "usuarios",
				RecordID:    user.ID.String(),
				Description: fmt.Sprintf("Usuário %s criado com cargo %s", user.NomeCompleto, user.Cargo),
				After:       map[string]any{"national_id": user.CPF, "email": user.Email, "role": user.Cargo},
			}); err != nil {
				return err
			}
		}

		out = CreatedUser{User: user, Specialized: specialized}
		return nil
	})
	if err != nil {
		return CreatedUser{}, err
	}

	log.Info().Str("usuario_id", out.User.ID.String()).Str("cargo", string(out.User.Cargo)).
		Str("especializado", out.Specialized.Kind().String()).Msg("usuário criado")
	return out, nil
}

func (e *RoleSyncEngine) prepare(in CreateUserInput) (repo.InsertUsuarioParams, error) {
	cpf := util.NormalizeCPF(in.NationalID)
	if err := validation.Validate(cpf, util.CPFRule); err != nil {
		return repo.InsertUsuarioParams{}, invalidField("national_id", err.Error())
	}
	role, err := repo.ParseRole(in.Role)
	if err != nil {
		return repo.InsertUsuarioParams{}, invalidField("role", "cargo inválido")
	}
	phone, err := util.NormalizePhone(in.Phone)
	if err != nil {
		return repo.InsertUsuarioParams{}, invalidField("phone", err.Error())
	}
	birth, err := util.ParseDate(in.BirthDate)
	if err != nil {
		return repo.InsertUsuarioParams{}, invalidField("birth_date", err.Error())
	}
	if err := util.ValidatePassword(in.Password, cpf); err != nil {
		return repo.InsertUsuarioParams{}, invalidField("password", err.Error())
	}
	if in.SupervisorID != nil && role != repo.RoleStudentNurse {
		return repo.InsertUsuarioParams{}, invalidField("supervising_instructor_id", "apenas alunos possuem instrutor responsável")
	}

	hash, err := e.passwords.hash(in.Password)
	if err != nil {
		return repo.InsertUsuarioParams{}, fmt.Errorf("hash senha: %w", err)
	}

	now := e.now()
	return repo.InsertUsuarioParams{
		ID:                  uuid.New(),
		NomeCompleto:        strings.TrimSpace(in.FullName),
		Email:               strings.ToLower(strings.TrimSpace(in.Email)),
		CPF:                 cpf,
		Telefone:            phone,
		DataNascimento:      birth,
		Profissao:           strings.TrimSpace(in.Profession),
		VinculoEmpregaticio: strings.TrimSpace(in.EmploymentBond),
		Endereco:            in.Address,
		Cargo:               role,
		CriadoPor:           in.CreatedBy,
		SenhaHash:           hash,
		SenhaAlteradaEm:     now,
		SenhaExpiraEm:       now.Add(e.passwords.Policy().MaxAge),
		Now:                 now,
	}, nil
}

// materialize cria o registro especializado mapeado pelo cargo, copiando identidade e contato.
func (e *RoleSyncEngine) materialize(ctx context.Context, q SpecializedStore, u repo.Usuario, hash string, in CreateUserInput) (repo.Especializado, error) {
	owner := u.ID
	switch u.Cargo.Specialized() {
	case repo.SpecializedInstructor:
		rec, err := q.UpsertInstrutora(ctx, repo.Instrutora{
			ID:            uuid.New(),
			UsuarioID:     &owner,
			Nome:          u.NomeCompleto,
			CPF:           u.CPF,
			Telefone:      u.Telefone,
			Email:         u.Email,
			Especialidade: strings.TrimSpace(in.Specialty),
			UnidadeSaude:  strings.TrimSpace(in.Workplace),
			Endereco:      u.Endereco,
			SenhaHash:     hash,
			CreatedAt:     u.CreatedAt,
		})
		if err != nil {
			return repo.Especializado{}, fmt.Errorf("registro de instrutora: %w", err)
		}
		return repo.Especializado{Instrutora: &rec}, nil
	case repo.SpecializedStudent:
		rec, err := q.UpsertAluna(ctx, repo.Aluna{
			ID:           uuid.New(),
			UsuarioID:    &owner,
			Nome:         u.NomeCompleto,
			CPF:          u.CPF,
			Telefone:     u.Telefone,
			Email:        u.Email,
			Endereco:     u.Endereco,
			InstrutoraID: in.SupervisorID,
			CreatedAt:    u.CreatedAt,
		})
		if err != nil {
			if repo.IsForeignKeyViolation(err) {
				return repo.Especializado{}, invalidField("supervising_instructor_id", "instrutora responsável não encontrada")
			}
			return repo.Especializado{}, fmt.Errorf("registro de aluna: %w", err)
		}
		return repo.Especializado{Aluna: &rec}, nil
	case repo.SpecializedNone:
		return repo.Especializado{}, nil
	}
	return repo.Especializado{}, fmt.Errorf("variante especializada desconhecida para %s", u.Cargo)
}

// ChangeRole altera o cargo e registra auditoria; registros especializados não são criados nem removidos.
func (e *RoleSyncEngine) ChangeRole(ctx context.Context, userID uuid.UUID, newRole string, actingUserID *uuid.UUID) (repo.Usuario, error) {
	var updated repo.Usuario
	err := e.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		var err error
		updated, err = e.changeRole(ctx, q, userID, newRole, actingUserID)
		return err
	})
	return updated, err
}

func (e *RoleSyncEngine) changeRole(ctx context.Context, q Queries, userID uuid.UUID, newRole string, actingUserID *uuid.UUID) (repo.Usuario, error) {
	role, err := repo.ParseRole(newRole)
	if err != nil {
		return repo.Usuario{}, invalidField("role", "cargo inválido")
	}

	user, err := q.LockUsuario(ctx, userID)
	if err != nil {
		return repo.Usuario{}, notFound(err)
	}
	if user.Cargo == role {
		return user, nil
	}

	if err := q.SetCargo(ctx, user.ID, role); err != nil {
		return repo.Usuario{}, err
	}
	if err := e.audit.Record(ctx, q, AuditEvent{
		ActorID:     actingUserID,
		Action:      repo.ActionRoleChanged,
		Table:       "usuarios",
		RecordID:    user.ID.String(),
		Description: fmt.Sprintf("Cargo alterado de %s para %s", user.Cargo, role),
		Before:      map[string]any{"role": user.Cargo},
		After:       map[string]any{"role": role},
	}); err != nil {
		return repo.Usuario{}, err
	}

	user.Cargo = role
	return user, nil
}
