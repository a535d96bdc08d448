package cfdi

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// SealResult XML sellado y el valor del atributo Sello.
type SealResult struct {
	XML  []byte
	Seal string
}

// Sealer agrega NoCertificado, Certificado y Sello al cfdi:Comprobante.
// El sello es RSA-SHA256 sobre la forma canónica (C14N) del documento sin el atributo Sello.
//
// Es un sello de integridad local: NO se calcula sobre la cadena original que define
// el SAT (transformación XSLT cadenaoriginal_4_0). Un PAC que valide el sello contra
// esa cadena lo rechazará; el timbrado real depende de que el PAC selle o de que el
// XML llegue ya sellado por un componente que aplique la XSLT oficial.
type Sealer struct{}

// NewSealer crea el servicio.
func NewSealer() *Sealer {
	return &Sealer{}
}

// Seal firma el XML con el CSD. Ver la nota de Sealer sobre la cadena original.
func (s *Sealer) Seal(xmlBytes []byte, cert *Certificate, key *KeyMaterial) (*SealResult, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("cfdi: XML vacío")
	}
	if cert == nil || key == nil || key.Key == nil {
		return nil, fmt.Errorf("cfdi: se requiere certificado y llave para sellar")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("cfdi: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("cfdi: documento sin raíz")
	}
	root.RemoveAttr("Sello")
	root.CreateAttr("NoCertificado", cert.Serial)
	root.CreateAttr("Certificado", cert.Base64)

	digest, err := documentDigest(doc)
	if err != nil {
		return nil, err
	}
	signature, err := rsa.SignPKCS1v15(rand.Reader, key.Key, crypto.SHA256, digest)
	if err != nil {
		return nil, fmt.Errorf("cfdi: firmar: %w", err)
	}
	seal := base64.StdEncoding.EncodeToString(signature)
	root.CreateAttr("Sello", seal)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("cfdi: serializar XML sellado: %w", err)
	}
	return &SealResult{XML: out, Seal: seal}, nil
}

// Verify comprueba el Sello de un XML contra la llave pública del certificado.
func (s *Sealer) Verify(xmlBytes []byte, cert *Certificate) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return fmt.Errorf("cfdi: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("cfdi: documento sin raíz")
	}
	seal := root.SelectAttrValue("Sello", "")
	if seal == "" {
		return fmt.Errorf("cfdi: el comprobante no trae Sello")
	}
	sig, err := base64.StdEncoding.DecodeString(seal)
	if err != nil {
		return fmt.Errorf("cfdi: Sello no es base64: %w", err)
	}
	root.RemoveAttr("Sello")
	digest, err := documentDigest(doc)
	if err != nil {
		return err
	}
	pub, ok := cert.X509.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("cfdi: el certificado no es RSA")
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, sig); err != nil {
		return fmt.Errorf("cfdi: sello inválido: %w", err)
	}
	return nil
}

func documentDigest(doc *etree.Document) ([]byte, error) {
	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("cfdi: serializar XML: %w", err)
	}
	canonical, err := canonicalize(raw)
	if err != nil {
		return nil, fmt.Errorf("cfdi: canonicalizar: %w", err)
	}
	h := sha256.Sum256(canonical)
	return h[:], nil
}

func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}
