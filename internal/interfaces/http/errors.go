package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cfdi-engine/internal/application/dto"
	"github.com/jhoicas/cfdi-engine/internal/domain"
)

// errorMapping taxonomía fiscal → status HTTP. El orden importa con errores combinados.
var errorMapping = []struct {
	target error
	status int
	code   string
}{
	{domain.ErrRemoteSigner, fiber.StatusBadGateway, "REMOTE_SIGNER"},
	{domain.ErrCertificateInvalid, fiber.StatusPreconditionFailed, "CERTIFICATE_INVALID"},
	{domain.ErrDuplicateDocument, fiber.StatusConflict, "DUPLICATE_DOCUMENT"},
	{domain.ErrInvalidTransition, fiber.StatusConflict, "INVALID_TRANSITION"},
	{domain.ErrIncompleteFiscalData, fiber.StatusUnprocessableEntity, "INCOMPLETE_FISCAL_DATA"},
	{domain.ErrLocalRuleViolation, fiber.StatusUnprocessableEntity, "LOCAL_RULE_VIOLATION"},
	{domain.ErrInvalidInput, fiber.StatusUnprocessableEntity, "VALIDATION"},
	{domain.ErrReferenceMissing, fiber.StatusNotFound, "REFERENCE_MISSING"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
}

// writeError responde con el status de la taxonomía; el mensaje del PAC va tal cual.
func writeError(c *fiber.Ctx, err error) error {
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
