package sat

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RFC genéricos definidos por el SAT.
const (
	GenericRFCNational = "XAXX010101000" // Público en general
	GenericRFCForeign  = "XEXX010101000" // Residente en el extranjero
)

// 3 letras (persona moral) o 4 (persona física), fecha AAMMDD y homoclave.
var rfcPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{2}(0[1-9]|1[0-2])(0[1-9]|[12][0-9]|3[01])[A-Z0-9]{2}[0-9A]$`)

// NormalizeRFC quita espacios y guiones y pasa a mayúsculas.
func NormalizeRFC(rfc string) string {
	r := strings.ToUpper(strings.TrimSpace(rfc))
	return strings.ReplaceAll(r, "-", "")
}

// ValidateRFC valida el patrón del RFC (moral o física). Los genéricos son válidos.
func ValidateRFC(rfc string) error {
	r := NormalizeRFC(rfc)
	if r == "" {
		return fmt.Errorf("sat: RFC vacío")
	}
	if !rfcPattern.MatchString(r) {
		return fmt.Errorf("sat: RFC con formato inválido %q", rfc)
	}
	return nil
}

// IsGenericNational indica si el RFC es el de público en general.
func IsGenericNational(rfc string) bool { return NormalizeRFC(rfc) == GenericRFCNational }

// IsGenericForeign indica si el RFC es el genérico de extranjeros.
func IsGenericForeign(rfc string) bool { return NormalizeRFC(rfc) == GenericRFCForeign }

// ValidateFiscalUUID valida el formato del folio fiscal (UUID en mayúsculas o minúsculas).
func ValidateFiscalUUID(s string) error {
	if _, err := uuid.Parse(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("sat: folio fiscal inválido %q: %w", s, err)
	}
	return nil
}

const verificationBaseURL = "https://verificacfdi.facturaelectronica.sat.gob.mx/default.aspx"

// VerificationURL arma la URL de consulta pública del CFDI (la misma que va en el QR impreso).
// fe son los últimos 8 caracteres del sello del emisor.
func VerificationURL(fiscalUUID, issuerRFC, receiverRFC string, total decimal.Decimal, seal string) string {
	fe := seal
	if len(fe) > 8 {
		fe = fe[len(fe)-8:]
	}
	q := url.Values{}
	q.Set("id", strings.ToUpper(fiscalUUID))
	q.Set("re", NormalizeRFC(issuerRFC))
	q.Set("rr", NormalizeRFC(receiverRFC))
	q.Set("tt", total.Round(2).StringFixed(2))
	q.Set("fe", fe)
	return verificationBaseURL + "?" + q.Encode()
}
