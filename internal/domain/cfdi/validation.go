package cfdi

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// ValidateIssuer exige el perfil fiscal propio completo.
func ValidateIssuer(p entity.IssuerProfile) error {
	var missing []error
	if p.RFC == "" {
		missing = append(missing, errors.New("emisor sin RFC"))
	}
	if p.Name == "" {
		missing = append(missing, errors.New("emisor sin razón social"))
	}
	if p.TaxRegime == "" {
		missing = append(missing, errors.New("emisor sin régimen fiscal"))
	}
	if p.PostalCode == "" {
		missing = append(missing, errors.New("emisor sin lugar de expedición"))
	}
	return joinAs(domain.ErrIncompleteFiscalData, missing)
}

// ValidateRecipient exige los datos fiscales del receptor. Para el RFC genérico de
// extranjeros también pide país de residencia y número de registro tributario.
func ValidateRecipient(c *entity.Customer) error {
	if c == nil {
		return domain.NewFiscalError("receptor", domain.ErrIncompleteFiscalData, "venta sin cliente")
	}
	var missing []error
	if c.RFC == "" {
		missing = append(missing, errors.New("receptor sin RFC"))
	}
	if c.Name == "" {
		missing = append(missing, errors.New("receptor sin razón social"))
	}
	if c.TaxRegime == "" {
		missing = append(missing, errors.New("receptor sin régimen fiscal"))
	}
	if c.PostalCode == "" {
		missing = append(missing, errors.New("receptor sin código postal"))
	}
	if c.CFDIUse == "" {
		missing = append(missing, errors.New("receptor sin uso de CFDI"))
	}
	if sat.IsGenericForeign(c.RFC) {
		if c.ResidenceCountry == "" {
			missing = append(missing, errors.New("receptor extranjero sin país de residencia"))
		}
		if c.ForeignTaxID == "" {
			missing = append(missing, errors.New("receptor extranjero sin NumRegIdTrib"))
		}
	}
	return joinAs(domain.ErrIncompleteFiscalData, missing)
}

// ValidatePaymentPair PPD va con forma 99; PUE nunca con 99.
func ValidatePaymentPair(method sat.PaymentMethod, form sat.PaymentForm) error {
	switch method {
	case sat.PaymentMethodDeferred:
		if form != sat.PaymentFormToBeDefined {
			return fmt.Errorf("método PPD requiere forma de pago 99, se recibió %q", form)
		}
	case sat.PaymentMethodSingle:
		if form == sat.PaymentFormToBeDefined {
			return errors.New("método PUE no admite forma de pago 99")
		}
	default:
		return fmt.Errorf("método de pago %q desconocido", method)
	}
	return nil
}

// ValidateRegimeUse el régimen 616 solo admite uso S01; el RFC de público en general exige ambos.
func ValidateRegimeUse(rfc, regime, use string) error {
	var errs []error
	if !sat.ValidTaxRegimes[regime] {
		errs = append(errs, fmt.Errorf("régimen fiscal %q no existe en el catálogo", regime))
	}
	if !sat.ValidCFDIUses[use] {
		errs = append(errs, fmt.Errorf("uso de CFDI %q no existe en el catálogo", use))
	}
	if regime == sat.RegimeNoObligations && use != sat.UseNoFiscalEffect {
		errs = append(errs, fmt.Errorf("régimen 616 solo admite uso S01, se recibió %q", use))
	}
	if sat.IsGenericNational(rfc) && (regime != sat.RegimeNoObligations || use != sat.UseNoFiscalEffect) {
		errs = append(errs, errors.New("RFC genérico XAXX010101000 requiere régimen 616 y uso S01"))
	}
	return errors.Join(errs...)
}

// CheckHeaderIdentity subtotal - descuento + trasladados - retenidos == total (±0.01).
func CheckHeaderIdentity(d *entity.FiscalDocument) error {
	expected := d.Subtotal.Sub(d.Discount).Add(d.TaxTransferred).Sub(d.TaxWithheld)
	if !WithinTolerance(expected, d.Total) {
		return fmt.Errorf("total %s no cuadra con subtotal - descuento + impuestos (%s)",
			d.Total.StringFixed(2), expected.StringFixed(2))
	}
	return nil
}

// Preflight corre todas las reglas locales del SAT sobre un borrador. Devuelve todas las
// violaciones juntas envueltas en ErrLocalRuleViolation.
func Preflight(d *entity.FiscalDocument) error {
	var errs []error
	if err := sat.ValidateRFC(d.Issuer.RFC); err != nil {
		errs = append(errs, fmt.Errorf("emisor: %w", err))
	}
	if err := sat.ValidateRFC(d.Receiver.RFC); err != nil {
		errs = append(errs, fmt.Errorf("receptor: %w", err))
	}
	if d.Kind == sat.KindPayment {
		if d.CFDIUse != sat.UsePayments {
			errs = append(errs, fmt.Errorf("complemento de pago requiere uso CP01, se recibió %q", d.CFDIUse))
		}
	} else {
		if err := ValidatePaymentPair(d.PaymentMethod, d.PaymentForm); err != nil {
			errs = append(errs, err)
		}
		if err := ValidateRegimeUse(d.Receiver.RFC, d.Receiver.TaxRegime, d.CFDIUse); err != nil {
			errs = append(errs, err)
		}
	}
	if err := CheckHeaderIdentity(d); err != nil {
		errs = append(errs, err)
	}
	if d.Relation != nil {
		if len(d.Relation.UUIDs) == 0 {
			errs = append(errs, errors.New("relación sin folios fiscales"))
		}
		for _, u := range d.Relation.UUIDs {
			if err := sat.ValidateFiscalUUID(u); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if d.Payment != nil {
		for _, r := range d.Payment.Related {
			if r.RemainingBalance.IsNegative() {
				errs = append(errs, fmt.Errorf("parcialidad %d deja saldo negativo", r.Partiality))
			}
		}
	}
	return joinAs(domain.ErrLocalRuleViolation, errs)
}

// ValidateCancellation el motivo 01 exige el folio fiscal que sustituye.
func ValidateCancellation(motive sat.CancelMotive, substitutionUUID string) error {
	if _, err := sat.ParseCancelMotive(string(motive)); err != nil {
		return domain.NewFiscalError("cancelar", domain.ErrLocalRuleViolation, err.Error())
	}
	if motive.RequiresSubstitution() {
		if substitutionUUID == "" {
			return domain.NewFiscalError("cancelar", domain.ErrLocalRuleViolation, "motivo 01 requiere folio de sustitución")
		}
		if err := sat.ValidateFiscalUUID(substitutionUUID); err != nil {
			return domain.NewFiscalError("cancelar", domain.ErrLocalRuleViolation, err.Error())
		}
	}
	return nil
}

// ProportionalTax parte de base e impuesto que corresponde a un pago: factor = amount / total.
func ProportionalTax(amount, total, subtotal, tax decimal.Decimal) (base, taxAmount decimal.Decimal, err error) {
	if !total.IsPositive() {
		return decimal.Zero, decimal.Zero, domain.NewFiscalError("proporción", domain.ErrInvalidInput, "total de la venta en cero")
	}
	factor := amount.Div(total)
	return Round2(subtotal.Mul(factor)), Round2(tax.Mul(factor)), nil
}

func joinAs(kind error, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{kind}, errs...)...)
}
