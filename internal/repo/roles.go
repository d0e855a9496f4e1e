package repo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRole   = errors.New("cargo inválido")
	ErrInvalidStatus = errors.New("status inválido")
	ErrInvalidAction = errors.New("ação de auditoria inválida")
)

// Role é o cargo profissional do usuário.
type Role string

const (
	RoleAdministrator       Role = "Administrator"
	RoleCoordinator         Role = "Coordinator"
	RoleInstructorNurse     Role = "Instructor-Nurse"
	RoleStudentNurse        Role = "Student-Nurse"
	RoleAmbulatoryClinician Role = "Ambulatory-Clinician"
	RoleSupplyOfficer       Role = "Supply-Officer"
	RoleVisitor             Role = "Visitor"
)

// AllRoles lista os cargos na ordem de exibição.
var AllRoles = []Role{
	RoleAdministrator,
	RoleCoordinator,
	RoleInstructorNurse,
	RoleStudentNurse,
	RoleAmbulatoryClinician,
	RoleSupplyOfficer,
	RoleVisitor,
}

// ManagementRoles podem administrar cadastros de profissionais.
var ManagementRoles = []Role{RoleAdministrator, RoleCoordinator, RoleInstructorNurse}

// rótulos legados aceitos na entrada, comparados em minúsculas
var roleAliases = map[string]Role{
	"administrador":              RoleAdministrator,
	"coordenador":                RoleCoordinator,
	"coordenador(a)":             RoleCoordinator,
	"enfermeiro(a) instrutor(a)": RoleInstructorNurse,
	"instrutor":                  RoleInstructorNurse,
	"enfermeiro(a) aluno(a)":     RoleStudentNurse,
	"aluno":                      RoleStudentNurse,
	"médico(a) / enfermeiro(a) ambulatorial": RoleAmbulatoryClinician,
	"ambulatory clinician":                   RoleAmbulatoryClinician,
	"responsável por insumos":                RoleSupplyOfficer,
	"supply officer":                         RoleSupplyOfficer,
	"visitante":                              RoleVisitor,
}

// ParseRole normaliza códigos e rótulos legados para o cargo canônico.
func ParseRole(raw string) (Role, error) {
	value := strings.TrimSpace(raw)
	for _, role := range AllRoles {
		if strings.EqualFold(value, string(role)) {
			return role, nil
		}
	}
	if role, ok := roleAliases[strings.ToLower(value)]; ok {
		return role, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
}

// Valid indica se o cargo pertence ao conjunto enumerado.
func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if role == r {
			return true
		}
	}
	return false
}

// SpecializedKind identifica a variante de registro especializado exigida por um cargo.
type SpecializedKind int

const (
	SpecializedNone SpecializedKind = iota
	SpecializedInstructor
	SpecializedStudent
)

func (k SpecializedKind) String() string {
	switch k {
	case SpecializedInstructor:
		return "instructor"
	case SpecializedStudent:
		return "student"
	default:
		return "none"
	}
}

// Specialized mapeia o cargo para a variante especializada; todo cargo precisa de um caso aqui.
func (r Role) Specialized() SpecializedKind {
	switch r {
	case RoleInstructorNurse:
		return SpecializedInstructor
	case RoleStudentNurse:
		return SpecializedStudent
	case RoleAdministrator, RoleCoordinator, RoleAmbulatoryClinician, RoleSupplyOfficer, RoleVisitor:
		return SpecializedNone
	}
	panic(fmt.Sprintf("cargo sem mapeamento especializado: %q", string(r)))
}

// IsManagement indica se o cargo pertence ao grupo de gestão.
func (r Role) IsManagement() bool {
	for _, role := range ManagementRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Status é a situação da conta.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusLocked   Status = "locked"
)

var statusAliases = map[string]Status{
	"active":    StatusActive,
	"ativo":     StatusActive,
	"inactive":  StatusInactive,
	"inativo":   StatusInactive,
	"locked":    StatusLocked,
	"bloqueado": StatusLocked,
}

// ParseStatus normaliza o status informado.
func ParseStatus(raw string) (Status, error) {
	if status, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// AuditAction enumera as transições registradas em auditoria.
type AuditAction string

const (
	ActionLogin              AuditAction = "login"
	ActionLogout             AuditAction = "logout"
	ActionPasswordChange     AuditAction = "password_change"
	ActionPasswordRecovery   AuditAction = "password_recovery"
	ActionAdminPasswordReset AuditAction = "admin_password_reset"
	ActionUserCreated        AuditAction = "user_created"
	ActionRoleChanged        AuditAction = "role_changed"
	ActionStatusChanged      AuditAction = "status_changed"
	ActionUserDeleted        AuditAction = "user_deleted"
	ActionEdit               AuditAction = "edit"
)

var validActions = map[AuditAction]struct{}{
	ActionLogin:              {},
	ActionLogout:             {},
	ActionPasswordChange:     {},
	ActionPasswordRecovery:   {},
	ActionAdminPasswordReset: {},
	ActionUserCreated:        {},
	ActionRoleChanged:        {},
	ActionStatusChanged:      {},
	ActionUserDeleted:        {},
	ActionEdit:               {},
}

// ParseAuditAction valida o filtro de ação.
func ParseAuditAction(raw string) (AuditAction, error) {
	action := AuditAction(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validActions[action]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
	return action, nil
}
