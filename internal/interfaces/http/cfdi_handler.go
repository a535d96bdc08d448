package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cfdi-engine/internal/application/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/application/dto"
	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	infracfdi "github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// maxImportBytes tamaño máximo del XML importado.
const maxImportBytes = 4 << 20

// documentStamper lo que el handler usa del coordinador; lo implementa *cfdi.Coordinator.
type documentStamper interface {
	Stamp(ctx context.Context, saleID string, req cfdi.StampRequest) (*entity.FiscalDocument, error)
	StampPayment(ctx context.Context, receivableID string, req cfdi.PaymentRequest) (*entity.FiscalDocument, error)
	StampAdvance(ctx context.Context, req cfdi.AdvanceRequest) (*entity.FiscalDocument, error)
	Cancel(ctx context.Context, documentID string, req cfdi.CancelRequest) (*cfdi.CancelOutcome, error)
	CertificateStatus() infracfdi.ValidationResult
	Document(ctx context.Context, id string) (*entity.FiscalDocument, error)
	DocumentXML(ctx context.Context, id string) ([]byte, *entity.FiscalDocument, error)
}

// documentImporter lo implementa *cfdi.ImportService.
type documentImporter interface {
	Import(ctx context.Context, raw []byte) (*cfdi.ImportResult, error)
	Remove(ctx context.Context, id string) error
}

// CFDIHandler maneja timbrado, cancelación, importación y consulta de comprobantes (protegido).
type CFDIHandler struct {
	stamper  documentStamper
	importer documentImporter
}

// NewCFDIHandler construye el handler.
func NewCFDIHandler(stamper documentStamper, importer documentImporter) *CFDIHandler {
	return &CFDIHandler{stamper: stamper, importer: importer}
}

// StampSale godoc
// @Summary      Timbrar la factura de una venta
// @Tags         cfdi
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        saleId  path  string            true   "ID de la venta"
// @Param        body    body  dto.StampRequest  false  "uso CFDI y relación (07 para anticipos)"
// @Success      201     {object}  dto.DocumentResponse
// @Failure      404     {object}  dto.ErrorResponse
// @Failure      409     {object}  dto.ErrorResponse
// @Failure      412     {object}  dto.ErrorResponse
// @Failure      422     {object}  dto.ErrorResponse
// @Failure      502     {object}  dto.ErrorResponse
// @Router       /api/cfdi/sales/{saleId}/stamp [post]
func (h *CFDIHandler) StampSale(c *fiber.Ctx) error {
	var in dto.StampRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	req := cfdi.StampRequest{CFDIUse: strings.TrimSpace(in.CFDIUse)}
	if in.Relation != nil {
		relType, err := sat.ParseRelationType(in.Relation.Type)
		if err != nil {
			return writeError(c, invalid("relación", err))
		}
		req.Relation = &entity.DocumentRelation{Type: relType, UUIDs: in.Relation.UUIDs}
	}
	doc, err := h.stamper.Stamp(c.Context(), c.Params("saleId"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewDocumentResponse(doc))
}

// StampPayment godoc
// @Summary      Timbrar complemento de pago
// @Tags         cfdi
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "ID de la cuenta por cobrar"
// @Param        body  body  dto.PaymentRequest  true  "monto, forma y fecha del pago"
// @Success      201   {object}  dto.DocumentResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/cfdi/receivables/{id}/payments [post]
func (h *CFDIHandler) StampPayment(c *fiber.Ctx) error {
	var in dto.PaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	form, err := sat.ParsePaymentForm(in.PaymentForm)
	if err != nil {
		return writeError(c, invalid("forma de pago", err))
	}
	req := cfdi.PaymentRequest{Amount: in.Amount, PaymentForm: form}
	if in.PaymentDate != nil {
		req.PaymentDate = *in.PaymentDate
	}
	doc, err := h.stamper.StampPayment(c.Context(), c.Params("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewDocumentResponse(doc))
}

// StampAdvance godoc
// @Summary      Timbrar CFDI de anticipo
// @Tags         cfdi
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AdvanceRequest  true  "cliente, monto con IVA y forma de pago"
// @Success      201   {object}  dto.DocumentResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/cfdi/advances [post]
func (h *CFDIHandler) StampAdvance(c *fiber.Ctx) error {
	var in dto.AdvanceRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	form, err := sat.ParsePaymentForm(in.PaymentForm)
	if err != nil {
		return writeError(c, invalid("forma de pago", err))
	}
	doc, err := h.stamper.StampAdvance(c.Context(), cfdi.AdvanceRequest{
		CustomerID:  in.CustomerID,
		SaleID:      in.SaleID,
		Amount:      in.Amount,
		TaxRate:     in.TaxRate,
		PaymentForm: form,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewDocumentResponse(doc))
}

// Cancel godoc
// @Summary      Cancelar un CFDI ante el SAT
// @Description  Si es la factura de una venta también cancela la venta; un fallo de esa cascada no revierte la cancelación fiscal.
// @Tags         cfdi
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "ID del comprobante"
// @Param        body  body  dto.CancelRequest  true  "motivo (01-04) y folio sustituto con motivo 01"
// @Success      200   {object}  dto.CancelResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/cfdi/documents/{id}/cancel [post]
func (h *CFDIHandler) Cancel(c *fiber.Ctx) error {
	var in dto.CancelRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	motive, err := sat.ParseCancelMotive(in.Motive)
	if err != nil {
		return writeError(c, invalid("motivo de cancelación", err))
	}
	out, err := h.stamper.Cancel(c.Context(), c.Params("id"), cfdi.CancelRequest{
		Motive:           motive,
		SubstitutionUUID: strings.TrimSpace(in.SubstitutionUUID),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.CancelResponse{
		Document:         dto.NewDocumentResponse(out.Document),
		AlreadyCancelled: out.AlreadyCancelled,
		SaleCancelled:    out.SaleCancelled,
		CascadeError:     out.CascadeError,
	})
}

// Import godoc
// @Summary      Importar un CFDI timbrado (XML crudo)
// @Tags         cfdi
// @Security     Bearer
// @Accept       application/xml
// @Produce      json
// @Success      201  {object}  dto.ImportResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/cfdi/import [post]
func (h *CFDIHandler) Import(c *fiber.Ctx) error {
	raw := c.Body()
	if len(raw) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "XML requerido"})
	}
	if len(raw) > maxImportBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{Code: "TOO_LARGE", Message: "XML demasiado grande"})
	}
	// fiber reutiliza el buffer del cuerpo
	payload := append([]byte(nil), raw...)
	res, err := h.importer.Import(c.Context(), payload)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ImportResponse{
		Document:        dto.NewDocumentResponse(res.Document),
		Restored:        res.Restored,
		AppliedPayments: res.AppliedPayments,
		SkippedPayments: res.SkippedPayments,
	})
}

// Remove godoc
// @Summary      Borrar lógicamente un comprobante sin venta viva
// @Tags         cfdi
// @Security     Bearer
// @Param        id   path  string  true  "ID del comprobante"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/cfdi/documents/{id} [delete]
func (h *CFDIHandler) Remove(c *fiber.Ctx) error {
	if err := h.importer.Remove(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetDocument godoc
// @Summary      Detalle de un comprobante
// @Tags         cfdi
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/cfdi/documents/{id} [get]
func (h *CFDIHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.stamper.Document(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.NewDocumentResponse(doc))
}

// GetDocumentXML godoc
// @Summary      XML timbrado del comprobante
// @Tags         cfdi
// @Security     Bearer
// @Produce      application/xml
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {string}  string
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/cfdi/documents/{id}/xml [get]
func (h *CFDIHandler) GetDocumentXML(c *fiber.Ctx) error {
	payload, doc, err := h.stamper.DocumentXML(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	name := doc.UUID
	if name == "" {
		name = doc.ID
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`.xml"`)
	return c.Send(payload)
}

// CertificateStatus godoc
// @Summary      Estado del certificado de sello digital
// @Tags         cfdi
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.CertificateStatusResponse
// @Router       /api/cfdi/certificate [get]
func (h *CFDIHandler) CertificateStatus(c *fiber.Ctx) error {
	st := h.stamper.CertificateStatus()
	return c.JSON(dto.CertificateStatusResponse{
		Valid:         st.Valid,
		Warning:       st.Warning,
		Message:       st.Message,
		DaysRemaining: st.DaysRemaining,
		Serial:        st.Serial,
		NotAfter:      st.NotAfter,
	})
}

func invalid(op string, err error) error {
	return domain.NewFiscalError(op, domain.ErrInvalidInput, err.Error())
}
