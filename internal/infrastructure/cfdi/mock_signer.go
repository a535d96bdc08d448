package cfdi

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/jhoicas/cfdi-engine/internal/domain"
)

const (
	mockProviderRFC    = "SPR190613I52"
	mockSATCertificate = "30001000000500003456"
)

// MockSigner timbra en local sin contactar al PAC (modo dev). Inserta un
// TimbreFiscalDigital con UUID aleatorio y un SelloSAT derivado del sello del emisor.
type MockSigner struct {
	now func() time.Time
}

var _ RemoteSigner = (*MockSigner)(nil)

// NewMockSigner construye el firmador de desarrollo.
func NewMockSigner() *MockSigner {
	return &MockSigner{now: time.Now}
}

// Stamp simula la respuesta del PAC.
func (m *MockSigner) Stamp(ctx context.Context, sealedXML []byte) (*StampResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(sealedXML); err != nil {
		return nil, &domain.RemoteSignerError{Code: "301", Message: "XML mal formado"}
	}
	root := doc.Root()
	if root == nil || root.Tag != "Comprobante" {
		return nil, &domain.RemoteSignerError{Code: "301", Message: "XML mal formado"}
	}
	sealCFD := root.SelectAttrValue("Sello", "")
	if sealCFD == "" {
		return nil, &domain.RemoteSignerError{Code: "302", Message: "Sello mal formado o inválido"}
	}

	id := strings.ToUpper(uuid.NewString())
	stampedAt := m.now().Truncate(time.Second)
	fecha := stampedAt.Format(dateLayout)
	h := sha256.Sum256([]byte(id + sealCFD))
	satSeal := base64.StdEncoding.EncodeToString(h[:])

	comp := child(root, "Complemento")
	if comp == nil {
		comp = root.CreateElement("cfdi:Complemento")
	}
	tfd := comp.CreateElement("tfd:TimbreFiscalDigital")
	tfd.CreateAttr("xmlns:tfd", NsTFD)
	tfd.CreateAttr("Version", "1.1")
	tfd.CreateAttr("UUID", id)
	tfd.CreateAttr("FechaTimbrado", fecha)
	tfd.CreateAttr("RfcProvCertif", mockProviderRFC)
	tfd.CreateAttr("SelloCFD", sealCFD)
	tfd.CreateAttr("NoCertificadoSAT", mockSATCertificate)
	tfd.CreateAttr("SelloSAT", satSeal)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("mock: serializar: %w", err)
	}
	return &StampResult{
		UUID:                 id,
		SATSeal:              satSeal,
		SATCertificateNumber: mockSATCertificate,
		ProviderRFC:          mockProviderRFC,
		StampedAt:            stampedAt,
		CadenaOriginal:       TFDCadenaOriginal("1.1", id, fecha, mockProviderRFC, sealCFD, mockSATCertificate),
		XML:                  out,
	}, nil
}

// Cancel acepta cualquier folio.
func (m *MockSigner) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &CancelResult{UUID: strings.ToUpper(req.UUID), Status: "201", CancelledAt: m.now()}, nil
}
