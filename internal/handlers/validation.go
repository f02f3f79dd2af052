package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"isp-agent-service/internal/services"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// cpf accepts any formatting as long as digits remain.
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return services.NormalizeCPF(fl.Field().String()) != ""
	})
	return v
}

// fieldMessages maps a request's struct field names to the 400 message
// returned when that field fails validation.
type fieldMessages map[string]string

// check validates req and returns the message of the first failing field,
// or "" when req is valid.
func (m fieldMessages) check(req any) string {
	err := validate.Struct(req)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if msg, ok := m[fe.StructField()]; ok {
				return msg
			}
		}
	}
	return "invalid_request"
}

const msgTokenAndCPF = "provider_token e CPF são obrigatórios"

var (
	chatMessages = fieldMessages{
		"ProviderToken": msgTokenAndCPF,
		"CPF":           msgTokenAndCPF,
		"Message":       "Dados insuficientes",
	}
	telemetryMessages = fieldMessages{
		"ProviderToken": msgTokenAndCPF,
		"CPF":           msgTokenAndCPF,
	}
	deviceMessages = fieldMessages{
		"ProviderToken": "provider_token é obrigatório.",
		"FCMToken":      "fcm_token é obrigatório.",
	}
	adminPushMessages = fieldMessages{
		"Title":       "Título e Mensagem são obrigatórios.",
		"Message":     "Título e Mensagem são obrigatórios.",
		"ScheduledAt": "scheduled_at deve estar no formato RFC3339.",
	}
)
