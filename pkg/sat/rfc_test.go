package sat_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

func TestValidateRFC(t *testing.T) {
	casos := []struct {
		rfc    string
		valido bool
	}{
		{"EKU9003173C9", true},
		{"XAXX010101000", true},
		{"XEXX010101000", true},
		{"CACX7605101P8", true},
		{"cacx-760510-1p8", true},
		{"", false},
		{"ABC", false},
		{"EKU9013173C9", false}, // mes 13
		{"EKU900317", false},
	}
	for _, c := range casos {
		err := sat.ValidateRFC(c.rfc)
		if c.valido {
			assert.NoError(t, err, c.rfc)
		} else {
			assert.Error(t, err, c.rfc)
		}
	}
}

func TestGenericRFC(t *testing.T) {
	assert.True(t, sat.IsGenericNational(" xaxx010101000 "))
	assert.False(t, sat.IsGenericNational("XEXX010101000"))
	assert.True(t, sat.IsGenericForeign("XEXX010101000"))
}

func TestPaymentFormForMethod(t *testing.T) {
	assert.Equal(t, sat.PaymentFormCash, sat.PaymentFormForMethod("cash"))
	assert.Equal(t, sat.PaymentFormTransfer, sat.PaymentFormForMethod("Transfer"))
	assert.Equal(t, sat.PaymentFormCheck, sat.PaymentFormForMethod("check"))
	assert.Equal(t, sat.PaymentFormCreditCard, sat.PaymentFormForMethod("card"))
	assert.Equal(t, sat.PaymentFormToBeDefined, sat.PaymentFormForMethod("trueque"))
}

func TestParseCatalogs_RechazaCodigosDesconocidos(t *testing.T) {
	_, err := sat.ParsePaymentMethod("PPX")
	assert.Error(t, err)
	m, err := sat.ParsePaymentMethod("ppd")
	require.NoError(t, err)
	assert.Equal(t, sat.PaymentMethodDeferred, m)

	_, err = sat.ParsePaymentForm("42")
	assert.Error(t, err)

	_, err = sat.ParseCancelMotive("05")
	assert.Error(t, err)
	motive, err := sat.ParseCancelMotive("01")
	require.NoError(t, err)
	assert.True(t, motive.RequiresSubstitution())

	obj, err := sat.ParseTaxObject("01")
	require.NoError(t, err)
	assert.Equal(t, sat.TaxObjectNotApplicable, obj)
	assert.Equal(t, "02", sat.TaxObjectExempt.Code())
}

func TestVerificationURL(t *testing.T) {
	u := sat.VerificationURL("ad662d33-6934-459c-a128-bdf0393e0f44", "EKU9003173C9", "XAXX010101000",
		decimal.RequireFromString("1160"), "abcdefghijklmnopQRSTUVWX")
	assert.True(t, strings.HasPrefix(u, "https://verificacfdi.facturaelectronica.sat.gob.mx/default.aspx?"))
	assert.Contains(t, u, "id=AD662D33-6934-459C-A128-BDF0393E0F44")
	assert.Contains(t, u, "tt=1160.00")
	assert.Contains(t, u, "fe=QRSTUVWX")
}
