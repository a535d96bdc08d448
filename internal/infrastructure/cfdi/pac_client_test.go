package cfdi_test

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

const stampOK = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
 <SOAP-ENV:Body>
  <ns0:stampResponse xmlns:ns0="http://facturacion.pac.mx/stamp">
   <ns0:stampResult>
    <ns0:xml>%XML%</ns0:xml>
    <ns0:UUID>ad662d33-6934-459c-a128-bdf0393e0f44</ns0:UUID>
    <ns0:Fecha>2026-10-17T10:31:02</ns0:Fecha>
    <ns0:SatSeal>c2VsbG9zYXQ=</ns0:SatSeal>
    <ns0:NoCertificadoSAT>30001000000500003456</ns0:NoCertificadoSAT>
    <ns0:RfcProvCertif>SPR190613I52</ns0:RfcProvCertif>
    <ns0:CodEstatus>Comprobante timbrado satisfactoriamente</ns0:CodEstatus>
   </ns0:stampResult>
  </ns0:stampResponse>
 </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

const stampRejected = `<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
 <SOAP-ENV:Body>
  <stampResponse><stampResult>
   <Incidencias><Incidencia>
    <CodigoError>CFDI40147</CodigoError>
    <MensajeIncidencia>El campo FormaPago no contiene un valor del catálogo c_FormaPago.</MensajeIncidencia>
   </Incidencia></Incidencias>
  </stampResult></stampResponse>
 </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

const soapFault = `<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
 <SOAP-ENV:Body><SOAP-ENV:Fault><faultcode>Client</faultcode><faultstring>Usuario o contraseña inválidos</faultstring></SOAP-ENV:Fault></SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

func pacServer(t *testing.T, status int, body string, inspect func(r *http.Request, payload string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if inspect != nil {
			inspect(r, string(b))
		}
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPACClient_StampExitoso(t *testing.T) {
	stamped := base64.StdEncoding.EncodeToString([]byte(`<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4"/>`))
	var action, payload string
	srv := pacServer(t, http.StatusOK, strings.Replace(stampOK, "%XML%", stamped, 1), func(r *http.Request, p string) {
		action = r.Header.Get("SOAPAction")
		payload = p
	})

	client := cfdi.NewPACClient(cfdi.PACConfig{StampURL: srv.URL, User: "demo", Password: "secreto"})
	res, err := client.Stamp(context.Background(), []byte("<cfdi:Comprobante/>"))
	require.NoError(t, err)

	assert.Equal(t, "stamp", action)
	assert.Contains(t, payload, "<username>demo</username>")
	assert.Contains(t, payload, base64.StdEncoding.EncodeToString([]byte("<cfdi:Comprobante/>")))

	assert.Equal(t, "AD662D33-6934-459C-A128-BDF0393E0F44", res.UUID)
	assert.Equal(t, "c2VsbG9zYXQ=", res.SATSeal)
	assert.Equal(t, "30001000000500003456", res.SATCertificateNumber)
	assert.Equal(t, "SPR190613I52", res.ProviderRFC)
	assert.Equal(t, time.Date(2026, 10, 17, 10, 31, 2, 0, time.UTC), res.StampedAt)
	assert.True(t, strings.HasPrefix(string(res.XML), "<cfdi:Comprobante"))
}

func TestPACClient_StampRechazadoConservaMensaje(t *testing.T) {
	srv := pacServer(t, http.StatusOK, stampRejected, nil)
	_, err := cfdi.NewPACClient(cfdi.PACConfig{StampURL: srv.URL}).Stamp(context.Background(), []byte("<a/>"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteSigner)

	var rse *domain.RemoteSignerError
	require.ErrorAs(t, err, &rse)
	assert.Equal(t, "CFDI40147", rse.Code)
	assert.Equal(t, "El campo FormaPago no contiene un valor del catálogo c_FormaPago.", rse.Message)
}

func TestPACClient_SOAPFault(t *testing.T) {
	srv := pacServer(t, http.StatusInternalServerError, soapFault, nil)
	_, err := cfdi.NewPACClient(cfdi.PACConfig{StampURL: srv.URL}).Stamp(context.Background(), []byte("<a/>"))
	var rse *domain.RemoteSignerError
	require.ErrorAs(t, err, &rse)
	assert.Equal(t, "Client", rse.Code)
	assert.Equal(t, "Usuario o contraseña inválidos", rse.Message)
}

func TestPACClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := cfdi.NewPACClient(cfdi.PACConfig{StampURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Stamp(context.Background(), []byte("<a/>"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteSigner)
	assert.True(t, cfdi.IsTimeout(err))
}

func TestPACClient_Cancel(t *testing.T) {
	body := `<Envelope><Body><cancelResponse><cancelResult>
	  <Folios><Folio><UUID>ad662d33-6934-459c-a128-bdf0393e0f44</UUID><EstatusUUID>201</EstatusUUID><EstatusCancelacion>Cancelado</EstatusCancelacion></Folio></Folios>
	  <Acuse>PEFjdXNlLz4=</Acuse><Fecha>2026-10-17T12:00:00</Fecha>
	</cancelResult></cancelResponse></Body></Envelope>`
	var payload string
	srv := pacServer(t, http.StatusOK, body, func(_ *http.Request, p string) { payload = p })

	res, err := cfdi.NewPACClient(cfdi.PACConfig{StampURL: srv.URL}).Cancel(context.Background(), cfdi.CancelRequest{
		UUID: "AD662D33-6934-459C-A128-BDF0393E0F44", IssuerRFC: "EKU9003173C9", Motive: sat.CancelWithoutRelation,
	})
	require.NoError(t, err)
	assert.Equal(t, "201", res.Status)
	assert.Equal(t, "PEFjdXNlLz4=", res.Acknowledgement)
	assert.Contains(t, payload, `Motivo="02"`)
	assert.NotContains(t, payload, "FolioSustitucion")
	assert.Contains(t, payload, "<taxpayer_id>EKU9003173C9</taxpayer_id>")
}

func TestPACClient_CancelRechazado(t *testing.T) {
	body := `<Envelope><Body><cancelResponse><cancelResult>
	  <Folios><Folio><UUID>X</UUID><EstatusUUID>205</EstatusUUID><EstatusCancelacion>UUID no existe</EstatusCancelacion></Folio></Folios>
	</cancelResult></cancelResponse></Body></Envelope>`
	srv := pacServer(t, http.StatusOK, body, nil)
	_, err := cfdi.NewPACClient(cfdi.PACConfig{StampURL: srv.URL}).Cancel(context.Background(), cfdi.CancelRequest{UUID: "X", Motive: sat.CancelNotCarriedOut})
	var rse *domain.RemoteSignerError
	require.ErrorAs(t, err, &rse)
	assert.Equal(t, "205", rse.Code)
	assert.Equal(t, "UUID no existe", rse.Message)
}

func TestMockSigner_InsertaTimbre(t *testing.T) {
	raw := []byte(`<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Sello="QUJD"><cfdi:Conceptos/></cfdi:Comprobante>`)
	res, err := cfdi.NewMockSigner().Stamp(context.Background(), raw)
	require.NoError(t, err)
	require.NoError(t, sat.ValidateFiscalUUID(res.UUID))
	assert.True(t, strings.HasPrefix(res.CadenaOriginal, "||1.1|"+res.UUID+"|"))

	root := parseXML(t, res.XML)
	tfd := root.FindElement("./cfdi:Complemento/tfd:TimbreFiscalDigital")
	require.NotNil(t, tfd)
	assert.Equal(t, res.UUID, tfd.SelectAttrValue("UUID", ""))
	assert.Equal(t, "QUJD", tfd.SelectAttrValue("SelloCFD", ""))

	_, err = cfdi.NewMockSigner().Stamp(context.Background(), []byte(`<cfdi:Comprobante xmlns:cfdi="x"/>`))
	assert.ErrorIs(t, err, domain.ErrRemoteSigner)
}
