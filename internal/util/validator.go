package util

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

const phoneRegion = "BR"

var (
	cpfPattern   = regexp.MustCompile(`^[0-9]{11}$`)
	upperPattern = regexp.MustCompile(`[A-Z]`)
	lowerPattern = regexp.MustCompile(`[a-z]`)
	digitPattern = regexp.MustCompile(`[0-9]`)
	// qualquer caractere fora de letras, dígitos e espaço conta como especial
	specialPattern = regexp.MustCompile(`[^A-Za-z0-9\s]`)
)

// NormalizeCPF remove pontuação e mantém apenas dígitos.
func NormalizeCPF(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CPFRule valida CPF já normalizado (11 dígitos).
var CPFRule = validation.Match(cpfPattern).Error("CPF deve conter 11 dígitos")

// EmailRules valida e-mail obrigatório.
var EmailRules = []validation.Rule{
	validation.Required.Error("email obrigatório"),
	validation.Length(3, 254).Error("email inválido"),
	is.Email.Error("email inválido"),
}

// ValidateEmail retorna erro para e-mails inválidos.
func ValidateEmail(email string) error {
	return validation.Validate(strings.TrimSpace(email), EmailRules...)
}

// ValidatePassword aplica a política de senha forte; a senha não pode repetir o CPF.
func ValidatePassword(password, cpf string) error {
	err := validation.Validate(password,
		validation.Required.Error("senha obrigatória"),
		validation.RuneLength(8, 128).Error("senha deve ter entre 8 e 128 caracteres"),
		validation.Match(upperPattern).Error("senha deve conter letra maiúscula"),
		validation.Match(lowerPattern).Error("senha deve conter letra minúscula"),
		validation.Match(digitPattern).Error("senha deve conter número"),
		validation.Match(specialPattern).Error("senha deve conter caractere especial"),
	)
	if err != nil {
		return err
	}
	if cpf != "" && NormalizeCPF(password) == cpf && len(password) == len(cpf) {
		return errors.New("senha não pode ser igual ao CPF")
	}
	return nil
}

// NormalizePhone converte o telefone para E.164 (região BR quando sem DDI).
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(raw, phoneRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return "", errors.New("telefone inválido")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ParseDate interpreta datas no formato AAAA-MM-DD (aceita também DD/MM/AAAA).
func ParseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("data inválida, use AAAA-MM-DD")
}
