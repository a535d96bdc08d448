package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")

	// Taxonomía fiscal.
	ErrIncompleteFiscalData = errors.New("datos fiscales incompletos")
	ErrCertificateInvalid   = errors.New("certificado de sello digital inválido")
	ErrDuplicateDocument    = errors.New("ya existe un comprobante vigente")
	ErrRemoteSigner         = errors.New("el PAC rechazó la solicitud")
	ErrLocalRuleViolation   = errors.New("regla del SAT incumplida")
	ErrReferenceMissing     = errors.New("no existe comprobante de referencia")
)

// FiscalError agrega operación y detalle a un error de la taxonomía.
// errors.Is(err, ErrLocalRuleViolation) sigue funcionando gracias a Unwrap.
type FiscalError struct {
	Op      string
	Err     error
	Details string
}

func (e *FiscalError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FiscalError) Unwrap() error { return e.Err }

// NewFiscalError construye un FiscalError.
func NewFiscalError(op string, err error, details string) *FiscalError {
	return &FiscalError{Op: op, Err: err, Details: details}
}

// RemoteSignerError respuesta de error del PAC o del SAT, con el mensaje tal cual lo devolvieron.
type RemoteSignerError struct {
	Code    string
	Message string
}

func (e *RemoteSignerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: [%s] %s", ErrRemoteSigner, e.Code, e.Message)
	}
	return fmt.Sprintf("%v: %s", ErrRemoteSigner, e.Message)
}

func (e *RemoteSignerError) Unwrap() error { return ErrRemoteSigner }
