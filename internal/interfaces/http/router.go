package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/cfdi-engine/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Stamper   documentStamper
	Importer  documentImporter
	JWTSecret string
	IssuerRFC string // tokens de otro RFC se rechazan
}

// Router registra las rutas de la API. Todo /api/cfdi requiere Bearer Token.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")
	protected := api.Group("/cfdi", AuthMiddleware(deps.JWTSecret, deps.IssuerRFC))

	h := NewCFDIHandler(deps.Stamper, deps.Importer)
	canStamp := RequireRole(jwt.RoleAdmin, jwt.RoleContador, jwt.RoleCajero)
	canCancel := RequireRole(jwt.RoleAdmin, jwt.RoleContador)

	// Timbrado
	protected.Post("/sales/:saleId/stamp", canStamp, h.StampSale)
	protected.Post("/receivables/:id/payments", canStamp, h.StampPayment)
	protected.Post("/advances", canStamp, h.StampAdvance)

	// Cancelación y administración de comprobantes
	protected.Post("/documents/:id/cancel", canCancel, h.Cancel)
	protected.Delete("/documents/:id", canCancel, h.Remove)
	protected.Post("/import", canCancel, h.Import)

	// Consulta
	protected.Get("/documents/:id", h.GetDocument)
	protected.Get("/documents/:id/xml", h.GetDocumentXML)
	protected.Get("/certificate", h.CertificateStatus)
}
