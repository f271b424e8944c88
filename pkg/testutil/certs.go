package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// PFXOptions describes a client container to generate for tests.
// Zero values fall back to a valid CamGovCA-issued certificate.
type PFXOptions struct {
	IssuerCN  string
	SubjectCN string
	NotBefore time.Time
	NotAfter  time.Time
	Serial    *big.Int
	Password  string
}

// PFX is a generated container together with the leaf it carries.
type PFX struct {
	Data []byte
	Leaf *x509.Certificate
}

func (o *PFXOptions) defaults() {
	now := time.Now()
	if o.IssuerCN == "" {
		o.IssuerCN = "CamGovCA"
	}
	if o.SubjectCN == "" {
		o.SubjectCN = "Jean Mbarga"
	}
	if o.NotBefore.IsZero() {
		o.NotBefore = now.AddDate(0, 0, -1)
	}
	if o.NotAfter.IsZero() {
		o.NotAfter = now.AddDate(1, 0, 0)
	}
	if o.Serial == nil {
		o.Serial = big.NewInt(0x1a2b3c4d5e)
	}
	if o.Password == "" {
		o.Password = "correct-horse"
	}
}

// NewPFX builds a CA, signs a leaf with it, and encodes both into a PKCS#12
// container protected by opts.Password.
func NewPFX(t *testing.T, opts PFXOptions) PFX {
	t.Helper()
	opts.defaults()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "generate CA key")
	caTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Country:      []string{"CM"},
			Organization: []string{"ANTIC"},
			CommonName:   opts.IssuerCN,
		},
		NotBefore:             opts.NotBefore.AddDate(-1, 0, 0),
		NotAfter:              opts.NotAfter.AddDate(1, 0, 0),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err, "create CA certificate")
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err, "parse CA certificate")

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err, "generate leaf key")
	leafTemplate := &x509.Certificate{
		SerialNumber: opts.Serial,
		Subject: pkix.Name{
			Country:      []string{"CM"},
			Organization: []string{"Applicants"},
			CommonName:   opts.SubjectCN,
		},
		NotBefore:   opts.NotBefore,
		NotAfter:    opts.NotAfter,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, &leafKey.PublicKey, caKey)
	require.NoError(t, err, "create leaf certificate")
	leaf, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err, "parse leaf certificate")

	data, err := pkcs12.Modern.Encode(leafKey, leaf, []*x509.Certificate{caCert}, opts.Password)
	require.NoError(t, err, "encode pkcs12")

	return PFX{Data: data, Leaf: leaf}
}

// WriteFile writes data into dir/name and returns the path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600), "write %s", name)
	return path
}

// FileExists reports whether path exists on disk.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
