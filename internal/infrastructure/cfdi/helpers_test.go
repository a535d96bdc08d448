package cfdi_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/youmark/pkcs8"

	"github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
)

const (
	testSerialHex  = "3330303031303030303030353030303033343136"
	testSerial     = "30001000000500003416"
	testPassphrase = "12345678a"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

// newTestCSD escribe un .cer DER y un .key PKCS#8 cifrado (como los entrega el SAT) en memoria.
func newTestCSD(t *testing.T, notAfter time.Time) (afero.Fs, cfdi.CertificateConfig) {
	t.Helper()
	key := rsaKey(t)

	serial, ok := new(big.Int).SetString(testSerialHex, 16)
	require.True(t, ok)
	tpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "ESCUELA KEMPER URGATE SA DE CV", SerialNumber: "EKU9003173C9"},
		NotBefore:    notAfter.AddDate(-4, 0, 0),
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := pkcs8.MarshalPrivateKey(key, []byte(testPassphrase), nil)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/csd/eku.cer", der, 0o600))
	require.NoError(t, afero.WriteFile(fs, "/csd/eku.key", keyDER, 0o600))
	return fs, cfdi.CertificateConfig{CertPath: "/csd/eku.cer", KeyPath: "/csd/eku.key", Passphrase: testPassphrase}
}

func fixedNow() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }
