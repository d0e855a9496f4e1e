package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/storage"
	"github.com/decidiu/plataforma/internal/util"
)

const maxPerPage = 100

// UserDetail é o usuário com o registro especializado vinculado (se houver).
type UserDetail struct {
	User        repo.Usuario        `json:"user"`
	Specialized *repo.Especializado `json:"specialized,omitempty"`
}

// ListUsersInput parametriza a listagem.
type ListUsersInput struct {
	Search  string
	Role    string
	Status  string
	Page    int
	PerPage int
}

// UserPage é uma página da listagem.
type UserPage struct {
	Items   []repo.Usuario `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

// UpdateUserInput traz apenas os campos enviados; nil mantém o valor atual.
type UpdateUserInput struct {
	FullName       *string        `json:"full_name"`
	Email          *string        `json:"email"`
	Phone          *string        `json:"phone"`
	BirthDate      *string        `json:"birth_date"`
	Profession     *string        `json:"profession"`
	EmploymentBond *string        `json:"employment_bond"`
	Address        *repo.Endereco `json:"address"`
	Role           *string        `json:"role"`
	Status         *string        `json:"status"`
}

func (in UpdateUserInput) profileChanged() bool {
	return in.FullName != nil || in.Email != nil || in.Phone != nil || in.BirthDate != nil ||
		in.Profession != nil || in.EmploymentBond != nil || in.Address != nil
}

// UserService cuida do cadastro de profissionais fora do fluxo de criação.
type UserService struct {
	store    Store
	audit    *AuditLogger
	sync     *RoleSyncEngine
	uploader storage.Uploader
	now      func() time.Time
}

// NewUserService cria o serviço de cadastro.
func NewUserService(store Store, audit *AuditLogger, sync *RoleSyncEngine, uploader storage.Uploader) *UserService {
	if uploader == nil {
		uploader = storage.NoopUploader{}
	}
	return &UserService{store: store, audit: audit, sync: sync, uploader: uploader, now: util.Now}
}

// Create delega ao motor de sincronização, registrando o chamador como autor.
func (s *UserService) Create(ctx context.Context, caller *Caller, in CreateUserInput) (CreatedUser, error) {
	if err := CanManageUsers(caller); err != nil {
		return CreatedUser{}, err
	}
	if caller.Role == repo.RoleInstructorNurse {
		role, err := repo.ParseRole(in.Role)
		if err == nil && role != repo.RoleStudentNurse {
			return CreatedUser{}, ErrForbidden
		}
	}
	in.CreatedBy = actor(caller.ID)
	return s.sync.CreateUser(ctx, in)
}

// Get carrega o usuário e o registro especializado.
func (s *UserService) Get(ctx context.Context, caller *Caller, id uuid.UUID) (UserDetail, error) {
	if err := CanManageUsers(caller); err != nil {
		return UserDetail{}, err
	}
	q := s.store.Read()
	user, err := q.GetUsuario(ctx, id)
	if err != nil {
		return UserDetail{}, notFound(err)
	}
	if err := CanManageTarget(caller, user); err != nil {
		return UserDetail{}, err
	}

	detail := UserDetail{User: user}
	esp, err := q.GetEspecializado(ctx, id)
	switch {
	case err == nil:
		detail.Specialized = &esp
	case !errors.Is(err, repo.ErrNotFound):
		return UserDetail{}, err
	}
	return detail, nil
}

// List pagina os usuários; instrutores enxergam apenas alunos.
func (s *UserService) List(ctx context.Context, caller *Caller, in ListUsersInput) (UserPage, error) {
	if err := CanManageUsers(caller); err != nil {
		return UserPage{}, err
	}

	filter := repo.UsuarioFilter{Search: strings.TrimSpace(in.Search)}
	if in.Role != "" {
		role, err := repo.ParseRole(in.Role)
		if err != nil {
			return UserPage{}, invalidField("role", "cargo inválido")
		}
		filter.Cargo = role
	}
	if forced := VisibleRole(caller); forced != "" {
		filter.Cargo = forced
	}
	if in.Status != "" {
		status, err := repo.ParseStatus(in.Status)
		if err != nil {
			return UserPage{}, invalidField("status", "status inválido")
		}
		filter.Status = status
	}

	page, perPage := in.Page, in.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	items, total, err := s.store.Read().ListUsuarios(ctx, filter)
	if err != nil {
		return UserPage{}, err
	}
	if items == nil {
		items = []repo.Usuario{}
	}
	return UserPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// Update altera dados cadastrais; cargo e status exigem administrador.
func (s *UserService) Update(ctx context.Context, caller *Caller, id uuid.UUID, in UpdateUserInput) (repo.Usuario, error) {
	if err := CanManageUsers(caller); err != nil {
		return repo.Usuario{}, err
	}
	if (in.Role != nil || in.Status != nil) && !caller.HasRole(repo.RoleAdministrator) {
		return repo.Usuario{}, ErrForbidden
	}

	var updated repo.Usuario
	err := s.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		current, err := q.LockUsuario(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if err := CanManageTarget(caller, current); err != nil {
			return err
		}
		updated = current

		if in.profileChanged() {
			params, err := mergeProfile(current, in, s.now())
			if err != nil {
				return err
			}
			if params.Email != current.Email {
				field, err := q.FindIdentityConflict(ctx, params.Email, "", &current.ID)
				if err != nil {
					return err
				}
				if field != "" {
					return &DuplicateIdentityError{Field: field}
				}
			}
			updated, err = q.UpdatePerfil(ctx, params)
			if err != nil {
				if field, ok := repo.IdentityConflict(err); ok {
					return &DuplicateIdentityError{Field: field}
				}
				return notFound(err)
			}
			if err := s.audit.Record(ctx, q, AuditEvent{
				ActorID:     actor(caller.ID),
				Action:      repo.ActionEdit,
				Table:       "usuarios",
				RecordID:    current.ID.String(),
				Description: fmt.Sprintf("Dados de %s atualizados", updated.NomeCompleto),
				Before:      profileSnapshot(current),
				After:       profileSnapshot(updated),
			}); err != nil {
				return err
			}
		}

		if in.Role != nil {
			changed, err := s.sync.changeRole(ctx, q, current.ID, *in.Role, actor(caller.ID))
			if err != nil {
				return err
			}
			updated.Cargo = changed.Cargo
		}

		if in.Status != nil {
			status, err := s.setStatus(ctx, q, caller, current, *in.Status)
			if err != nil {
				return err
			}
			updated.Status = status
		}
		return nil
	})
	if err != nil {
		return repo.Usuario{}, err
	}
	return updated, nil
}

// SetStatus ativa, inativa ou bloqueia a conta.
func (s *UserService) SetStatus(ctx context.Context, caller *Caller, id uuid.UUID, status string) (repo.Usuario, error) {
	if err := CanAdminister(caller); err != nil {
		return repo.Usuario{}, err
	}
	var updated repo.Usuario
	err := s.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		current, err := q.LockUsuario(ctx, id)
		if err != nil {
			return notFound(err)
		}
		next, err := s.setStatus(ctx, q, caller, current, status)
		if err != nil {
			return err
		}
		updated = current
		updated.Status = next
		return nil
	})
	return updated, err
}

func (s *UserService) setStatus(ctx context.Context, q Queries, caller *Caller, current repo.Usuario, raw string) (repo.Status, error) {
	status, err := repo.ParseStatus(raw)
	if err != nil {
		return "", invalidField("status", "status inválido")
	}
	if status == current.Status {
		return status, nil
	}
	if current.ID == caller.ID && status != repo.StatusActive {
		return "", invalidField("status", "não é possível desativar a própria conta")
	}
	if err := q.SetStatus(ctx, current.ID, status); err != nil {
		return "", notFound(err)
	}
	if err := s.audit.Record(ctx, q, AuditEvent{
		ActorID:     actor(caller.ID),
		Action:      repo.ActionStatusChanged,
		Table:       "usuarios",
		RecordID:    current.ID.String(),
		Description: fmt.Sprintf("Status alterado de %s para %s", current.Status, status),
		Before:      map[string]any{"status": current.Status},
		After:       map[string]any{"status": status},
	}); err != nil {
		return "", err
	}
	return status, nil
}

// Delete remove o usuário; o registro especializado é mantido sem vínculo.
func (s *UserService) Delete(ctx context.Context, caller *Caller, id uuid.UUID) error {
	if err := CanManageUsers(caller); err != nil {
		return err
	}
	if caller.ID == id {
		return invalid("não é possível excluir o próprio usuário")
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		target, err := q.LockUsuario(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if err := CanManageTarget(caller, target); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, q, AuditEvent{
			ActorID:     actor(caller.ID),
			Action:      repo.ActionUserDeleted,
			Table:       "usuarios",
			RecordID:    target.ID.String(),
			Description: fmt.Sprintf("Usuário %s excluído", target.NomeCompleto),
			Before:      profileSnapshot(target),
		}); err != nil {
			return err
		}
		return notFound(q.DeleteUsuario(ctx, target.ID))
	})
	if err != nil {
		return err
	}
	log.Info().Str("usuario_id", id.String()).Str("autor", caller.ID.String()).Msg("usuário excluído")
	return nil
}

// AttachDocument envia diploma (instrutor) ou certificado (aluno) e grava a URL no registro especializado.
func (s *UserService) AttachDocument(ctx context.Context, caller *Caller, id uuid.UUID, body []byte, filename string) (string, error) {
	if err := CanManageUsers(caller); err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", invalidField("file", "arquivo obrigatório")
	}
	if len(body) > storage.MaxDocumentSize {
		return "", invalidField("file", "arquivo excede 10 MB")
	}

	q := s.store.Read()
	user, err := q.GetUsuario(ctx, id)
	if err != nil {
		return "", notFound(err)
	}
	if err := CanManageTarget(caller, user); err != nil {
		return "", err
	}
	esp, err := q.GetEspecializado(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrNoSpecializedRecord
		}
		return "", err
	}

	contentType, err := storage.DetectDocumentType(body)
	if err != nil {
		return "", invalidField("file", "formato não suportado (PDF, JPEG ou PNG)")
	}

	kind := esp.Kind()
	docName := "diploma"
	if kind == repo.SpecializedStudent {
		docName = "certificado"
	}

	disposition := ""
	if name := strings.TrimSpace(filename); name != "" {
		disposition = fmt.Sprintf("inline; filename=%q", name)
	}
	res, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:                storage.DocumentKey(user.ID, docName, contentType),
		Body:               body,
		ContentType:        contentType,
		ContentDisposition: disposition,
	})
	if err != nil {
		log.Error().Err(err).Str("usuario_id", id.String()).Msg("documentos: upload falhou")
		return "", fmt.Errorf("upload documento: %w", err)
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, q Queries) error {
		if err := q.SetDocumentoURL(ctx, kind, id, res.URL); err != nil {
			return notFound(err)
		}
		return s.audit.Record(ctx, q, AuditEvent{
			ActorID:     actor(caller.ID),
			Action:      repo.ActionEdit,
			Table:       tableFor(kind),
			RecordID:    id.String(),
			Description: fmt.Sprintf("Documento (%s) anexado para %s", docName, user.NomeCompleto),
			After:       map[string]any{docName + "_url": res.URL},
		})
	})
	if err != nil {
		return "", err
	}
	return res.URL, nil
}

func tableFor(kind repo.SpecializedKind) string {
	if kind == repo.SpecializedStudent {
		return "enfermeiras_alunas"
	}
	return "enfermeiras_instrutoras"
}

func mergeProfile(u repo.Usuario, in UpdateUserInput, now time.Time) (repo.UpdatePerfilParams, error) {
	params := repo.UpdatePerfilParams{
		ID:                  u.ID,
		NomeCompleto:        u.NomeCompleto,
		Email:               u.Email,
		Telefone:            u.Telefone,
		DataNascimento:      u.DataNascimento,
		Profissao:           u.Profissao,
		VinculoEmpregaticio: u.VinculoEmpregaticio,
		Endereco:            u.Endereco,
		Now:                 now,
	}

	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if err := validation.Validate(name, validation.Required, validation.RuneLength(3, 200)); err != nil {
			return params, invalidField("full_name", "nome deve ter entre 3 e 200 caracteres")
		}
		params.NomeCompleto = name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if err := util.ValidateEmail(email); err != nil {
			return params, invalidField("email", err.Error())
		}
		params.Email = email
	}
	if in.Phone != nil {
		phone, err := util.NormalizePhone(*in.Phone)
		if err != nil {
			return params, invalidField("phone", err.Error())
		}
		params.Telefone = phone
	}
	if in.BirthDate != nil {
		birth, err := util.ParseDate(*in.BirthDate)
		if err != nil {
			return params, invalidField("birth_date", err.Error())
		}
		params.DataNascimento = birth
	}
	if in.Profession != nil {
		params.Profissao = strings.TrimSpace(*in.Profession)
	}
	if in.EmploymentBond != nil {
		params.VinculoEmpregaticio = strings.TrimSpace(*in.EmploymentBond)
	}
	if in.Address != nil {
		params.Endereco = *in.Address
	}
	return params, nil
}

func profileSnapshot(u repo.Usuario) map[string]any {
	return map[string]any{
		"full_name":       u.NomeCompleto,
		"email":           u.Email,
		"phone":           u.Telefone,
		"birth_date":      u.DataNascimento,
		"profession":      u.Profissao,
		"employment_bond": u.VinculoEmpregaticio,
		"address":         u.Endereco,
		"role":            u.Cargo,
		"status":          u.Status,
	}
}
