package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/decidiu/plataforma/internal/repo"
)

// Caller é o contexto de autorização resolvido uma vez por requisição.
type Caller struct {
	ID             uuid.UUID
	Name           string
	Role           repo.Role
	Status         repo.Status
	TokenID        string
	TokenExpiresAt time.Time
}

// CallerFromUser monta o contexto de autorização a partir do usuário carregado.
func CallerFromUser(u repo.Usuario) *Caller {
	return &Caller{ID: u.ID, Name: u.NomeCompleto, Role: u.Cargo, Status: u.Status}
}

// HasRole indica se o chamador possui algum dos cargos.
func (c *Caller) HasRole(roles ...repo.Role) bool {
	if c == nil {
		return false
	}
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// Authorize exige chamador identificado e com um dos cargos informados.
func Authorize(c *Caller, roles ...repo.Role) error {
	if c == nil {
		return ErrUnauthorized
	}
	if c.Status != repo.StatusActive {
		return ErrForbidden
	}
	if len(roles) > 0 && !c.HasRole(roles...) {
		return ErrForbidden
	}
	return nil
}

// CanManageUsers libera o cadastro para os cargos de gestão.
func CanManageUsers(c *Caller) error {
	return Authorize(c, repo.ManagementRoles...)
}

// CanAdminister restringe a administradores.
func CanAdminister(c *Caller) error {
	return Authorize(c, repo.RoleAdministrator)
}

// CanManageTarget aplica o escopo por cargo: instrutores só gerenciam alunos (e a si mesmos).
func CanManageTarget(c *Caller, target repo.Usuario) error {
	if err := CanManageUsers(c); err != nil {
		return err
	}
	if c.Role == repo.RoleInstructorNurse && target.ID != c.ID && target.Cargo != repo.RoleStudentNurse {
		return ErrForbidden
	}
	return nil
}

// VisibleRole devolve o cargo fixo imposto à listagem ("" quando sem restrição).
func VisibleRole(c *Caller) repo.Role {
	if c != nil && c.Role == repo.RoleInstructorNurse {
		return repo.RoleStudentNurse
	}
	return ""
}
