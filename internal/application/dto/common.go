package dto

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/gestion-pyme/internal/domain"
)

// PageRequest paginación para listados.
type PageRequest struct {
	Limit  int `query:"limit" validate:"min=1,max=100"`
	Offset int `query:"offset" validate:"min=0"`
}

// DefaultPage aplica valores por defecto si Limit/Offset son cero.
func (p *PageRequest) DefaultPage() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total,omitempty"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Los nombres de campo en los errores usan el tag json.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate valida las etiquetas `validate` de v y devuelve *domain.ValidationError.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.E(domain.KindValidation, "validate", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = messageFor(fe)
	}
	return &domain.ValidationError{Fields: fields}
}

// fieldPath quita el nombre del struct raíz: "SaleRequest.items[0].quantity" -> "items[0].quantity".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "es requerido"
	case "email":
		return "email inválido"
	case "min":
		if fe.Kind() == reflect.String {
			return "debe tener al menos " + fe.Param() + " caracteres"
		}
		if fe.Kind() == reflect.Slice {
			return "debe tener al menos " + fe.Param() + " elemento(s)"
		}
		return "debe ser mayor o igual a " + fe.Param()
	case "max":
		return "excede el máximo de " + fe.Param()
	case "oneof":
		return "debe ser uno de: " + fe.Param()
	case "uuid":
		return "debe ser un UUID"
	default:
		return "inválido (" + fe.Tag() + ")"
	}
}

// moneyLimit primer valor que no cabe en numeric(14,2).
var moneyLimit = decimal.New(1, 12)

// MoneyIssue devuelve por qué d no cabe en una columna numeric(14,2), o "" si cabe.
func MoneyIssue(d decimal.Decimal) string {
	switch {
	case !d.Equal(d.Round(2)):
		return "máximo 2 decimales"
	case d.Abs().GreaterThanOrEqual(moneyLimit):
		return "excede el máximo permitido"
	}
	return ""
}

// mergeFields une los campos inválidos de err (si es ValidationError) con extra.
func mergeFields(err error, extra map[string]string) error {
	if err == nil && len(extra) == 0 {
		return nil
	}
	fields := make(map[string]string)
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		for k, v := range ve.Fields {
			fields[k] = v
		}
	} else if err != nil {
		return err
	}
	for k, v := range extra {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	return &domain.ValidationError{Fields: fields}
}
