package cfdi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

const facturaRecibida = `<?xml version="1.0" encoding="UTF-8"?>
<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" xmlns:tfd="http://www.sat.gob.mx/TimbreFiscalDigital"
  Version="4.0" Serie="F" Folio="778" Fecha="2026-09-30T18:04:11" SubTotal="1000.00" Descuento="100.00" Total="1044.00"
  Moneda="MXN" TipoDeComprobante="I" Exportacion="01" MetodoPago="PUE" FormaPago="03" LugarExpedicion="64000"
  NoCertificado="30001000000500003416" Sello="U0VMTE9DRkQ=">
  <cfdi:Emisor Rfc="EKU9003173C9" Nombre="ESCUELA KEMPER URGATE" RegimenFiscal="601"/>
  <cfdi:Receptor Rfc="CACX7605101P8" Nombre="XOCHILT CASAS CHAVEZ" DomicilioFiscalReceptor="36257" RegimenFiscalReceptor="612" UsoCFDI="G03"/>
  <cfdi:Conceptos>
    <cfdi:Concepto ClaveProdServ="43211503" NoIdentificacion="LAP-01" Cantidad="1" ClaveUnidad="H87" Unidad="Pieza"
      Descripcion="Laptop" ValorUnitario="1000.00" Importe="1000.00" Descuento="100.00" ObjetoImp="02">
      <cfdi:Impuestos>
        <cfdi:Traslados><cfdi:Traslado Base="900.00" Impuesto="002" TipoFactor="Tasa" TasaOCuota="0.160000" Importe="144.00"/></cfdi:Traslados>
        <cfdi:Retenciones><cfdi:Retencion Base="900.00" Impuesto="001" TipoFactor="Tasa" TasaOCuota="0.100000" Importe="90.00"/></cfdi:Retenciones>
      </cfdi:Impuestos>
    </cfdi:Concepto>
  </cfdi:Conceptos>
  <cfdi:Impuestos TotalImpuestosRetenidos="90.00" TotalImpuestosTrasladados="144.00">
    <cfdi:Retenciones><cfdi:Retencion Impuesto="001" Importe="90.00"/></cfdi:Retenciones>
    <cfdi:Traslados><cfdi:Traslado Base="900.00" Impuesto="002" TipoFactor="Tasa" TasaOCuota="0.160000" Importe="144.00"/></cfdi:Traslados>
  </cfdi:Impuestos>
  <cfdi:Complemento>
    <tfd:TimbreFiscalDigital Version="1.1" UUID="ad662d33-6934-459c-a128-bdf0393e0f44" FechaTimbrado="2026-09-30T18:05:00"
      RfcProvCertif="SPR190613I52" SelloCFD="U0VMTE9DRkQ=" NoCertificadoSAT="30001000000500003456" SelloSAT="U0FU"/>
  </cfdi:Complemento>
</cfdi:Comprobante>`

const pagoLatin1 = `<?xml version="1.0" encoding="ISO-8859-1"?>
<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" xmlns:pago20="http://www.sat.gob.mx/Pagos20"
  Version="4.0" Fecha="2026-10-01T09:00:00" SubTotal="0" Total="0" Moneda="XXX" TipoDeComprobante="P" LugarExpedicion="42501">
  <cfdi:Emisor Rfc="XIQB891116QE4" Nombre="BERENICE XIMO QUEZADA" RegimenFiscal="612"/>
  <cfdi:Receptor Rfc="EKU9003173C9" Nombre="ESCUELA KEMPER URGATE" DomicilioFiscalReceptor="42501" RegimenFiscalReceptor="601" UsoCFDI="CP01"/>
  <cfdi:Conceptos><cfdi:Concepto ClaveProdServ="84111506" Cantidad="1" ClaveUnidad="ACT" Descripcion="Pago" ValorUnitario="0" Importe="0" ObjetoImp="01"/></cfdi:Conceptos>
  <cfdi:Complemento>
    <pago20:Pagos Version="2.0">
      <pago20:Totales MontoTotalPagos="500.00"/>
      <pago20:Pago FechaPago="2026-09-29T12:00:00" FormaDePagoP="03" MonedaP="MXN" Monto="500.00">
        <pago20:DoctoRelacionado IdDocumento="bd662d33-6934-459c-a128-bdf0393e0f44" MonedaDR="MXN" NumParcialidad="2"
          ImpSaldoAnt="1160.00" ImpPagado="500.00" ImpSaldoInsoluto="660.00" ObjetoImpDR="02">
          <pago20:ImpuestosDR><pago20:TrasladosDR>
            <pago20:TrasladoDR BaseDR="431.03" ImpuestoDR="002" TipoFactorDR="Tasa" TasaOCuotaDR="0.160000" ImporteDR="68.97"/>
          </pago20:TrasladosDR></pago20:ImpuestosDR>
        </pago20:DoctoRelacionado>
      </pago20:Pago>
    </pago20:Pagos>
    <tfd:TimbreFiscalDigital xmlns:tfd="http://www.sat.gob.mx/TimbreFiscalDigital" Version="1.1" UUID="cd662d33-6934-459c-a128-bdf0393e0f44"
      FechaTimbrado="2026-10-01T09:01:00" RfcProvCertif="SPR190613I52" SelloCFD="QQ==" NoCertificadoSAT="30001000000500003456" SelloSAT="Qg=="/>
  </cfdi:Complemento>
  <!-- Observación: pago en línea ñandú -->
</cfdi:Comprobante>`

func TestParser_FacturaRecibida(t *testing.T) {
	doc, err := cfdi.NewParser("XIQB891116QE4", nil).Parse([]byte(facturaRecibida))
	require.NoError(t, err)

	assert.Equal(t, entity.DirectionReceived, doc.Direction)
	assert.Equal(t, sat.KindIncome, doc.Kind)
	assert.Equal(t, "AD662D33-6934-459C-A128-BDF0393E0F44", doc.UUID)
	assert.Equal(t, "EKU9003173C9", doc.Issuer.RFC)
	assert.Equal(t, "CACX7605101P8", doc.Receiver.RFC)
	assert.Equal(t, "G03", doc.CFDIUse)
	assert.True(t, doc.Total.Equal(d("1044")))
	assert.True(t, doc.Discount.Equal(d("100")))
	assert.True(t, doc.TaxTransferred.Equal(d("144")))
	assert.True(t, doc.TaxWithheld.Equal(d("90")))
	assert.Equal(t, "SPR190613I52", doc.ProviderRFC)
	require.NotNil(t, doc.StampedAt)
	assert.Equal(t, "||1.1|AD662D33-6934-459C-A128-BDF0393E0F44|2026-09-30T18:05:00|SPR190613I52|U0VMTE9DRkQ=|30001000000500003456||", doc.CadenaOriginal)

	require.Len(t, doc.Concepts, 1)
	c := doc.Concepts[0]
	assert.Equal(t, "LAP-01", c.SKU)
	assert.Equal(t, sat.TaxObjectTaxable, c.TaxObject)
	assert.True(t, c.TaxBase.Equal(d("900")))
	assert.True(t, c.TaxAmount.Equal(d("144")))
	require.Len(t, c.Withholdings, 1)
	assert.Equal(t, sat.TaxISR, c.Withholdings[0].Tax)
}

func TestParser_EmitidaPorNosotros(t *testing.T) {
	doc, err := cfdi.NewParser("eku9003173c9", nil).Parse([]byte(facturaRecibida))
	require.NoError(t, err)
	assert.Equal(t, entity.DirectionIssued, doc.Direction)
}

func TestParser_PagoEnLatin1(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().String(pagoLatin1)
	require.NoError(t, err)

	doc, err := cfdi.NewParser("EKU9003173C9", nil).Parse([]byte(encoded))
	require.NoError(t, err)
	assert.Equal(t, sat.KindPayment, doc.Kind)
	assert.Equal(t, entity.DirectionReceived, doc.Direction)
	require.NotNil(t, doc.Payment)
	assert.True(t, doc.Payment.Amount.Equal(d("500")))
	require.Len(t, doc.Payment.Related, 1)

	rp := doc.Payment.Related[0]
	assert.Equal(t, "BD662D33-6934-459C-A128-BDF0393E0F44", rp.DocumentUUID)
	assert.Equal(t, 2, rp.Partiality)
	assert.True(t, rp.RemainingBalance.Equal(d("660")))
	assert.Equal(t, sat.TaxObjectTaxable, rp.TaxObject)
	assert.True(t, rp.TaxBase.Equal(d("431.03")))
	assert.True(t, rp.TaxRate.Equal(d("0.16")))
	assert.True(t, rp.TaxAmount.Equal(d("68.97")))
}

func TestParser_ToleraBloquesOpcionales(t *testing.T) {
	raw := `<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/3" Version="3.3" Fecha="2021-01-01T00:00:00" SubTotal="10" Total="10" TipoDeComprobante="I">
	  <cfdi:Emisor Rfc="EKU9003173C9"/></cfdi:Comprobante>`
	doc, err := cfdi.NewParser("", nil).Parse([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, doc.UUID)
	assert.Empty(t, doc.Concepts)
	assert.Equal(t, "MXN", doc.Currency)
}

func TestParser_Errores(t *testing.T) {
	casos := map[string]string{
		"no es XML":           "hola",
		"raíz distinta":       `<Factura/>`,
		"importe no numérico": `<cfdi:Comprobante xmlns:cfdi="x" TipoDeComprobante="I" Total="mil"/>`,
		"tipo desconocido":    `<cfdi:Comprobante xmlns:cfdi="x" TipoDeComprobante="Z"/>`,
	}
	for nombre, raw := range casos {
		t.Run(nombre, func(t *testing.T) {
			_, err := cfdi.NewParser("", nil).Parse([]byte(raw))
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestTFDCadenaOriginal(t *testing.T) {
	got := cfdi.TFDCadenaOriginal("1.1", "AD662D33-6934-459C-A128-BDF0393E0F44", "2026-10-17T10:31:02",
		"SPR190613I52", "c2VsbG8=", "00001000000509846663")
	assert.Equal(t,
		"||1.1|AD662D33-6934-459C-A128-BDF0393E0F44|2026-10-17T10:31:02|SPR190613I52|c2VsbG8=|00001000000509846663||", got)
}
