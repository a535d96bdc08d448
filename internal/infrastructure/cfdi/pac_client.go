package cfdi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// ── Constantes de modo ────────────────────────────────────────────────────────

const (
	// ModeDev no contacta al PAC; se usa MockSigner.
	ModeDev = "dev"
	// ModeTest usa el ambiente de pruebas del PAC.
	ModeTest = "test"
	// ModeProd usa el ambiente productivo del PAC.
	ModeProd = "prod"

	soapNS      = "http://schemas.xmlsoap.org/soap/envelope/"
	pacNSStamp  = "http://facturacion.pac.mx/stamp"
	pacNSCancel = "http://facturacion.pac.mx/cancel"

	defaultPACTimeout = 60 * time.Second
	maxResponseSize   = 1 << 20 // 1 MB
)

// ── Resultados ────────────────────────────────────────────────────────────────

// StampResult datos del timbre devueltos por el PAC.
type StampResult struct {
	UUID                 string
	SATSeal              string
	SATCertificateNumber string
	ProviderRFC          string
	StampedAt            time.Time
	CadenaOriginal       string // vacío si el PAC no la devuelve
	XML                  []byte // CFDI timbrado (con TimbreFiscalDigital)
}

// CancelRequest solicitud de cancelación ante el SAT.
type CancelRequest struct {
	UUID             string
	IssuerRFC        string
	Motive           sat.CancelMotive
	SubstitutionUUID string
}

// CancelResult acuse de cancelación.
type CancelResult struct {
	UUID            string
	Status          string // EstatusUUID reportado por el SAT
	Acknowledgement string // acuse XML en base64 tal cual lo entrega el PAC
	CancelledAt     time.Time
}

// RemoteSigner puerto de salida hacia el PAC. La implementación concreta usa SOAP;
// en modo dev se inyecta MockSigner.
type RemoteSigner interface {
	Stamp(ctx context.Context, sealedXML []byte) (*StampResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error)
}

// ── Implementación SOAP ───────────────────────────────────────────────────────

// PACConfig endpoint y credenciales del PAC.
type PACConfig struct {
	StampURL  string
	CancelURL string
	User      string
	Password  string
	Timeout   time.Duration
}

// PACClient implementa RemoteSigner contra el WS SOAP de un PAC (timbrado y cancelación).
type PACClient struct {
	cfg        PACConfig
	httpClient *http.Client
}

var _ RemoteSigner = (*PACClient)(nil)

// NewPACClient construye el cliente. Sin timeout configurado usa 60 s.
func NewPACClient(cfg PACConfig) *PACClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPACTimeout
	}
	if cfg.CancelURL == "" {
		cfg.CancelURL = cfg.StampURL
	}
	return &PACClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name   `xml:"soapenv:Envelope"`
	XmlnsS  string     `xml:"xmlns:soapenv,attr"`
	Header  soapHeader `xml:"soapenv:Header"`
	Body    soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct{}

type soapBody struct {
	Content any
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type stampBody struct {
	XMLName  xml.Name `xml:"stamp"`
	Xmlns    string   `xml:"xmlns,attr"`
	XML      string   `xml:"xml"` // CFDI sellado en base64
	Username string   `xml:"username"`
	Password string   `xml:"password"`
}

type cancelBody struct {
	XMLName    xml.Name   `xml:"cancel"`
	Xmlns      string     `xml:"xmlns,attr"`
	UUIDs      cancelUUID `xml:"UUIDS>UUID"`
	Username   string     `xml:"username"`
	Password   string     `xml:"password"`
	TaxpayerID string     `xml:"taxpayer_id"`
}

type cancelUUID struct {
	UUID             string `xml:"UUID,attr"`
	Motivo           string `xml:"Motivo,attr"`
	FolioSustitucion string `xml:"FolioSustitucion,attr,omitempty"`
}

// ── Estructuras de respuesta ──────────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Stamp  *stampResponse  `xml:"stampResponse"`
	Cancel *cancelResponse `xml:"cancelResponse"`
	Fault  *soapFault      `xml:"Fault"`
}

type stampResponse struct {
	Result stampResult `xml:"stampResult"`
}

type stampResult struct {
	XML              string       `xml:"xml"`
	UUID             string       `xml:"UUID"`
	Fecha            string       `xml:"Fecha"`
	SatSeal          string       `xml:"SatSeal"`
	NoCertificadoSAT string       `xml:"NoCertificadoSAT"`
	RfcProvCertif    string       `xml:"RfcProvCertif"`
	CadenaOriginal   string       `xml:"CadenaOriginal"`
	CodEstatus       string       `xml:"CodEstatus"`
	Incidencias      []incidencia `xml:"Incidencias>Incidencia"`
}

type incidencia struct {
	CodigoError       string `xml:"CodigoError"`
	MensajeIncidencia string `xml:"MensajeIncidencia"`
}

type cancelResponse struct {
	Result cancelResult `xml:"cancelResult"`
}

type cancelResult struct {
	Folios      []cancelFolio `xml:"Folios>Folio"`
	Acuse       string        `xml:"Acuse"`
	Fecha       string        `xml:"Fecha"`
	CodEstatus  string        `xml:"CodEstatus"`
	Incidencias []incidencia  `xml:"Incidencias>Incidencia"`
}

type cancelFolio struct {
	UUID               string `xml:"UUID"`
	EstatusUUID        string `xml:"EstatusUUID"`
	EstatusCancelacion string `xml:"EstatusCancelacion"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Stamp ─────────────────────────────────────────────────────────────────────

// Stamp envía el CFDI sellado al PAC. Cualquier rechazo se devuelve como
// *domain.RemoteSignerError con el código y mensaje del PAC tal cual.
func (c *PACClient) Stamp(ctx context.Context, sealedXML []byte) (*StampResult, error) {
	body := &stampBody{
		Xmlns:    pacNSStamp,
		XML:      base64.StdEncoding.EncodeToString(sealedXML),
		Username: c.cfg.User,
		Password: c.cfg.Password,
	}
	raw, err := c.call(ctx, c.cfg.StampURL, "stamp", body)
	if err != nil {
		return nil, err
	}
	resp, err := parseSOAP(raw)
	if err != nil {
		return nil, err
	}
	if resp.Stamp == nil {
		return nil, &domain.RemoteSignerError{Message: "respuesta de timbrado vacía o inesperada"}
	}
	r := resp.Stamp.Result
	if len(r.Incidencias) > 0 {
		return nil, incidenciaError(r.Incidencias)
	}
	if r.UUID == "" {
		return nil, &domain.RemoteSignerError{Code: r.CodEstatus, Message: "el PAC no devolvió folio fiscal"}
	}

	stampedAt, err := time.Parse(dateLayout, strings.TrimSpace(r.Fecha))
	if err != nil {
		return nil, &domain.RemoteSignerError{Message: fmt.Sprintf("FechaTimbrado inválida: %q", r.Fecha)}
	}
	stamped := []byte(r.XML)
	if decoded, decErr := base64.StdEncoding.DecodeString(r.XML); decErr == nil && bytes.HasPrefix(bytes.TrimSpace(decoded), []byte("<")) {
		stamped = decoded
	}
	return &StampResult{
		UUID:                 strings.ToUpper(r.UUID),
		SATSeal:              r.SatSeal,
		SATCertificateNumber: r.NoCertificadoSAT,
		ProviderRFC:          r.RfcProvCertif,
		StampedAt:            stampedAt,
		CadenaOriginal:       r.CadenaOriginal,
		XML:                  stamped,
	}, nil
}

// ── Cancel ────────────────────────────────────────────────────────────────────

// Cancel solicita la cancelación de un folio fiscal con su motivo.
func (c *PACClient) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	body := &cancelBody{
		Xmlns: pacNSCancel,
		UUIDs: cancelUUID{
			UUID:             req.UUID,
			Motivo:           string(req.Motive),
			FolioSustitucion: req.SubstitutionUUID,
		},
		Username:   c.cfg.User,
		Password:   c.cfg.Password,
		TaxpayerID: req.IssuerRFC,
	}
	raw, err := c.call(ctx, c.cfg.CancelURL, "cancel", body)
	if err != nil {
		return nil, err
	}
	resp, err := parseSOAP(raw)
	if err != nil {
		return nil, err
	}
	if resp.Cancel == nil {
		return nil, &domain.RemoteSignerError{Message: "respuesta de cancelación vacía o inesperada"}
	}
	r := resp.Cancel.Result
	if len(r.Incidencias) > 0 {
		return nil, incidenciaError(r.Incidencias)
	}
	if len(r.Folios) == 0 {
		return nil, &domain.RemoteSignerError{Code: r.CodEstatus, Message: "el PAC no devolvió el estatus del folio"}
	}
	folio := r.Folios[0]
	// 201 cancelado, 202 previamente cancelado. Cualquier otro código es rechazo.
	if folio.EstatusUUID != "201" && folio.EstatusUUID != "202" {
		return nil, &domain.RemoteSignerError{Code: folio.EstatusUUID, Message: folio.EstatusCancelacion}
	}
	cancelledAt, err := time.Parse(dateLayout, strings.TrimSpace(r.Fecha))
	if err != nil {
		cancelledAt = time.Now()
	}
	return &CancelResult{
		UUID:            strings.ToUpper(folio.UUID),
		Status:          folio.EstatusUUID,
		Acknowledgement: r.Acuse,
		CancelledAt:     cancelledAt,
	}, nil
}

// ── Transporte ────────────────────────────────────────────────────────────────

func (c *PACClient) call(ctx context.Context, url, action string, body any) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("pac: URL no configurada")
	}
	envelope := soapEnvelope{XmlnsS: soapNS, Body: soapBody{Content: body}}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("pac: serializar envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("pac: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, &domain.RemoteSignerError{Code: "timeout", Message: fmt.Sprintf("sin respuesta del PAC en %s", c.cfg.Timeout)}
		}
		return nil, &domain.RemoteSignerError{Message: fmt.Sprintf("llamada HTTP fallida: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("pac: leer respuesta: %w", err)
	}
	// Los faults SOAP llegan con 500; se parsean abajo.
	if resp.StatusCode >= 400 && !bytes.Contains(raw, []byte("Fault")) {
		return nil, &domain.RemoteSignerError{Code: fmt.Sprint(resp.StatusCode), Message: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}

func parseSOAP(raw []byte) (*soapResponseBody, error) {
	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, &domain.RemoteSignerError{Message: "respuesta SOAP ilegible: " + truncate(string(raw), 512)}
	}
	if f := env.Body.Fault; f != nil {
		return nil, &domain.RemoteSignerError{Code: f.FaultCode, Message: f.FaultString}
	}
	return &env.Body, nil
}

func incidenciaError(in []incidencia) error {
	msgs := make([]string, 0, len(in))
	for _, i := range in {
		msgs = append(msgs, i.MensajeIncidencia)
	}
	return &domain.RemoteSignerError{Code: in[0].CodigoError, Message: strings.Join(msgs, "; ")}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// IsTimeout indica si el error del PAC fue por falta de respuesta.
func IsTimeout(err error) bool {
	var rse *domain.RemoteSignerError
	return errors.As(err, &rse) && rse.Code == "timeout"
}
