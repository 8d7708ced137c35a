package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrConflict           = errors.New("conflicto con el estado actual")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrStockChanged       = errors.New("el stock cambió durante la operación, reintente")
	ErrUnavailable        = errors.New("servicio no disponible")
)

// Kind clasifica un error según cómo debe tratarlo el llamador.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindPermissionDenied
	KindConflict
	KindUnavailable
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindPermissionDenied:
		return "PERMISSION_DENIED"
	case KindConflict:
		return "CONFLICT"
	case KindUnavailable:
		return "UNAVAILABLE"
	case KindValidation:
		return "VALIDATION"
	default:
		return "INTERNAL"
	}
}

// Error envuelve un error con su Kind y la operación que lo produjo.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E construye un *Error. Si err es nil usa el sentinel asociado al kind.
func E(kind Kind, op string, err error) error {
	if err == nil {
		err = sentinelFor(kind)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func sentinelFor(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindPermissionDenied:
		return ErrForbidden
	case KindConflict:
		return ErrConflict
	case KindUnavailable:
		return ErrUnavailable
	case KindValidation:
		return ErrInvalidInput
	default:
		return errors.New("error interno")
	}
}

// ValidationError detalla los campos inválidos de una entrada.
type ValidationError struct {
	Fields map[string]string
}

// NewValidation crea un ValidationError con un solo campo.
func NewValidation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validación: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// KindOf devuelve la clasificación estructurada de err.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthorized):
		return KindPermissionDenied
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrEmailAlreadyExists), errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrStockChanged):
		return KindConflict
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrInvalidInput):
		return KindValidation
	}
	return KindInternal
}
