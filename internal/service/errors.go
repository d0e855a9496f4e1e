package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/decidiu/plataforma/internal/repo"
)

var (
	// ErrInvalidCredentials indica falha na autenticação (mensagem única para qualquer causa).
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrExpiredProvisional indica senha provisória vencida.
	ErrExpiredProvisional = fmt.Errorf("%w: senha provisória expirada", ErrInvalidCredentials)
	// ErrUsedProvisional indica senha provisória já consumida.
	ErrUsedProvisional = fmt.Errorf("%w: senha provisória já utilizada", ErrInvalidCredentials)
	// ErrNotFound indica usuário inexistente ou indisponível para a operação.
	ErrNotFound = errors.New("usuário não encontrado")
	// ErrNoSpecializedRecord indica usuário sem registro profissional vinculado.
	ErrNoSpecializedRecord = errors.New("registro profissional não encontrado")
	// ErrForbidden indica ausência de permissão.
	ErrForbidden = errors.New("acesso negado")
	// ErrUnauthorized indica chamada sem identificação do usuário.
	ErrUnauthorized = errors.New("usuário não identificado")
)

// DuplicateIdentityError informa qual campo de identidade colidiu.
type DuplicateIdentityError struct {
	Field string
}

func (e *DuplicateIdentityError) Error() string {
	switch e.Field {
	case repo.FieldEmail:
		return "email já cadastrado"
	case repo.FieldCPF:
		return "CPF já cadastrado"
	default:
		return "identidade já cadastrada"
	}
}

// ValidationError agrega falhas de validação por campo.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

func invalidField(field, message string) error {
	return &ValidationError{Message: "dados inválidos", Fields: map[string]string{field: message}}
}

// fromValidation converte erros do ozzo-validation em ValidationError.
func fromValidation(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		fields := make(map[string]string, len(errs))
		for k, v := range errs {
			if v != nil {
				fields[k] = v.Error()
			}
		}
		return &ValidationError{Message: "dados inválidos", Fields: fields}
	}
	return &ValidationError{Message: err.Error()}
}

func notFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
