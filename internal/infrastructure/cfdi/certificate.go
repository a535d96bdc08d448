// Package cfdi implementa la frontera técnica del CFDI 4.0: certificado de sello digital,
// armado del XML, sellado, cliente del PAC y lectura de XML recibidos.
package cfdi

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/pkcs12"

	"github.com/jhoicas/cfdi-engine/internal/domain"
)

// Días antes del vencimiento en que se empieza a advertir.
const expirationWarningDays = 30

// Certificate certificado de sello digital (CSD) leído del almacén.
type Certificate struct {
	Raw      []byte // DER
	PEM      string
	Base64   string // valor del atributo Certificado
	Serial   string // valor del atributo NoCertificado
	NotAfter time.Time
	X509     *x509.Certificate
}

// KeyMaterial llave privada del CSD. Vive solo lo que dura la operación.
type KeyMaterial struct {
	Key *rsa.PrivateKey
}

// ValidationResult resultado de Validate.
type ValidationResult struct {
	Valid         bool
	Warning       bool
	Message       string
	DaysRemaining int
	Serial        string
	NotAfter      time.Time
}

// CertificateConfig rutas y contraseña del CSD.
// CertPath acepta .cer (DER o PEM) o .pfx/.p12; KeyPath acepta .key (PKCS#8 cifrado, DER o PEM).
type CertificateConfig struct {
	CertPath   string
	KeyPath    string
	Passphrase string
}

// CertificateManager lee el CSD en cada llamada; nunca lo guarda en memoria entre operaciones.
type CertificateManager struct {
	fs  afero.Fs
	cfg CertificateConfig
	now func() time.Time
}

// NewCertificateManager construye el gestor sobre el sistema de archivos indicado.
func NewCertificateManager(fs afero.Fs, cfg CertificateConfig) *CertificateManager {
	return &CertificateManager{fs: fs, cfg: cfg, now: time.Now}
}

// WithClock reemplaza el reloj (pruebas).
func (m *CertificateManager) WithClock(now func() time.Time) *CertificateManager {
	m.now = now
	return m
}

// LoadSigningCertificate lee y parsea el certificado.
func (m *CertificateManager) LoadSigningCertificate() (*Certificate, error) {
	if m.cfg.CertPath == "" {
		return nil, domain.NewFiscalError("certificado", domain.ErrCertificateInvalid, "MissingCertificate: ruta no configurada")
	}
	data, err := afero.ReadFile(m.fs, m.cfg.CertPath)
	if err != nil {
		return nil, domain.NewFiscalError("certificado", domain.ErrCertificateInvalid, "MissingCertificate: "+err.Error())
	}

	var der []byte
	switch {
	case isPKCS12(m.cfg.CertPath):
		_, cert, err := pkcs12.Decode(data, m.cfg.Passphrase)
		if err != nil {
			return nil, domain.NewFiscalError("certificado", domain.ErrCertificateInvalid, "decodificar pfx: "+err.Error())
		}
		der = cert.Raw
	case bytes.Contains(data, []byte("-----BEGIN")):
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, domain.NewFiscalError("certificado", domain.ErrCertificateInvalid, "PEM ilegible")
		}
		der = block.Bytes
	default:
		der = data
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, domain.NewFiscalError("certificado", domain.ErrCertificateInvalid, "parsear certificado: "+err.Error())
	}
	return &Certificate{
		Raw:      der,
		PEM:      string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		Base64:   base64.StdEncoding.EncodeToString(der),
		Serial:   SerialNumber(parsed),
		NotAfter: parsed.NotAfter,
		X509:     parsed,
	}, nil
}

// LoadSigningKey lee y descifra la llave privada.
func (m *CertificateManager) LoadSigningKey() (*KeyMaterial, error) {
	path := m.cfg.KeyPath
	if path == "" && isPKCS12(m.cfg.CertPath) {
		path = m.cfg.CertPath
	}
	if path == "" {
		return nil, domain.NewFiscalError("llave", domain.ErrCertificateInvalid, "MissingKey: ruta no configurada")
	}
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		return nil, domain.NewFiscalError("llave", domain.ErrCertificateInvalid, "MissingKey: "+err.Error())
	}
	key, err := m.parseKey(path, data)
	if err != nil {
		// No se incluye la contraseña ni bytes de la llave en el error.
		return nil, domain.NewFiscalError("llave", domain.ErrCertificateInvalid, err.Error())
	}
	return &KeyMaterial{Key: key}, nil
}

func (m *CertificateManager) parseKey(path string, data []byte) (*rsa.PrivateKey, error) {
	pass := []byte(m.cfg.Passphrase)

	if isPKCS12(path) {
		priv, _, err := pkcs12.Decode(data, m.cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("decodificar pfx: %w", err)
		}
		return asRSA(priv)
	}

	if block, _ := pem.Decode(data); block != nil {
		switch {
		case block.Type == "ENCRYPTED PRIVATE KEY":
			return pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, pass)
		//nolint:staticcheck // llaves convertidas con openssl en formato tradicional
		case x509.IsEncryptedPEMBlock(block):
			der, err := x509.DecryptPEMBlock(block, pass)
			if err != nil {
				return nil, errors.New("contraseña de la llave incorrecta")
			}
			return parsePlainKey(der)
		default:
			return parsePlainKey(block.Bytes)
		}
	}

	// .key del SAT: PKCS#8 cifrado en DER.
	key, err := pkcs8.ParsePKCS8PrivateKeyRSA(data, pass)
	if err != nil {
		if plain, perr := parsePlainKey(data); perr == nil {
			return plain, nil
		}
		return nil, fmt.Errorf("descifrar llave: %w", err)
	}
	return key, nil
}

func parsePlainKey(der []byte) (*rsa.PrivateKey, error) {
	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return asRSA(k)
	}
	k, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("llave privada ilegible: %w", err)
	}
	return k, nil
}

func asRSA(k any) (*rsa.PrivateKey, error) {
	rsaKey, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("la llave del CSD debe ser RSA")
	}
	return rsaKey, nil
}

func isPKCS12(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".pfx" || ext == ".p12"
}

// SerialNumber convierte el serial del CSD a NoCertificado. El SAT codifica cada dígito como
// su código ASCII en hex ("3330..." -> "30..."); con otra longitud se devuelve tal cual.
func SerialNumber(cert *x509.Certificate) string {
	return DecodeSerial(cert.SerialNumber.Text(16))
}

// DecodeSerial aplica la decodificación ASCII a un serial hex de 40 caracteres.
func DecodeSerial(hexSerial string) string {
	if len(hexSerial) != 40 {
		return hexSerial
	}
	raw, err := hex.DecodeString(hexSerial)
	if err != nil {
		return hexSerial
	}
	return string(raw)
}

// Validate revisa que existan certificado y llave, que haya contraseña, que la llave corresponda
// al certificado y que no esté vencido. Advierte cuando faltan 30 días o menos.
func (m *CertificateManager) Validate() ValidationResult {
	if m.cfg.Passphrase == "" {
		return ValidationResult{Message: "contraseña de la llave no configurada"}
	}
	cert, err := m.LoadSigningCertificate()
	if err != nil {
		return ValidationResult{Message: err.Error()}
	}
	key, err := m.LoadSigningKey()
	if err != nil {
		return ValidationResult{Message: err.Error(), Serial: cert.Serial, NotAfter: cert.NotAfter}
	}

	res := ValidationResult{Serial: cert.Serial, NotAfter: cert.NotAfter}
	pub, ok := cert.X509.PublicKey.(*rsa.PublicKey)
	if !ok || !pub.Equal(&key.Key.PublicKey) {
		res.Message = "la llave privada no corresponde al certificado"
		return res
	}

	now := m.now()
	if now.After(cert.NotAfter) {
		res.Message = fmt.Sprintf("certificado vencido el %s", cert.NotAfter.Format("2006-01-02"))
		return res
	}
	res.DaysRemaining = int(cert.NotAfter.Sub(now).Hours() / 24)
	res.Valid = true
	if res.DaysRemaining <= expirationWarningDays {
		res.Warning = true
		res.Message = fmt.Sprintf("el certificado vence en %d días", res.DaysRemaining)
		return res
	}
	res.Message = "certificado vigente"
	return res
}

// Require convierte un resultado inválido en ErrCertificateInvalid.
func (r ValidationResult) Require() error {
	if r.Valid {
		return nil
	}
	return domain.NewFiscalError("certificado", domain.ErrCertificateInvalid, r.Message)
}
