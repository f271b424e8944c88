// Package certificate decrypts PKCS#12 client containers and decides whether the
// leaf certificate inside them is acceptable for onboarding.
//
// Trust is a single hardcoded anchor: the issuer common name must equal
// TrustedIssuerCN. Checks run in a fixed order (decrypt, issuer, validity window)
// and the first failure is returned as a *ValidationError.
package certificate

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"onboard/pkg/requestcontext"
)

// DefaultDecodeTimeout bounds container decryption when no option overrides it.
const DefaultDecodeTimeout = 5 * time.Second

// Validator checks uploaded containers. It is safe for concurrent use.
type Validator struct {
	trustedIssuer string
	decodeTimeout time.Duration
	now           func(ctx context.Context) time.Time
	tracer        trace.Tracer
}

// Option configures a Validator.
type Option func(*Validator)

// WithDecodeTimeout bounds how long a single container may take to decrypt.
func WithDecodeTimeout(d time.Duration) Option {
	return func(v *Validator) {
		if d > 0 {
			v.decodeTimeout = d
		}
	}
}

// WithClock overrides the time source used for the validity window.
func WithClock(now func(ctx context.Context) time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a Validator trusting TrustedIssuerCN.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		trustedIssuer: TrustedIssuerCN,
		decodeTimeout: DefaultDecodeTimeout,
		now:           requestcontext.Now,
		tracer:        otel.Tracer("onboard/certificate"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate reads the container at path, decrypts it with password and checks the
// leaf certificate. It never returns a partial identity.
func (v *Validator) Validate(ctx context.Context, path, password string) (*Identity, error) {
	ctx, span := v.tracer.Start(ctx, "certificate.Validate")
	defer span.End()

	identity, err := v.validate(ctx, path, password)
	if err != nil {
		kind, _ := KindOf(err)
		span.SetAttributes(attribute.String("certificate.failure_kind", string(kind)))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		return nil, err
	}
	span.SetAttributes(attribute.String("certificate.serial", identity.SerialNumber))
	return identity, nil
}

func (v *Validator) validate(ctx context.Context, path, password string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, malformed(fmt.Errorf("read container: %w", err))
	}

	leaf, err := v.decode(ctx, data, password)
	if err != nil {
		return nil, err
	}

	issuerCN := CommonName(attributes(leaf.Issuer))
	if issuerCN != v.trustedIssuer {
		return nil, &ValidationError{Kind: KindUntrustedIssuer, Detail: issuerCN}
	}

	now := v.now(ctx)
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return nil, &ValidationError{Kind: KindExpiredOrNotYetValid}
	}

	return identityFrom(leaf), nil
}

type decodeResult struct {
	leaf *x509.Certificate
	err  error
}

// decode runs the PKCS#12 decryption on its own goroutine so a hostile container
// cannot hold the request past the decode deadline.
func (v *Validator) decode(ctx context.Context, data []byte, password string) (*x509.Certificate, error) {
	ctx, cancel := context.WithTimeout(ctx, v.decodeTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return nil, &ValidationError{Kind: KindTimeout, Err: err}
	}

	done := make(chan decodeResult, 1)
	go func() {
		leaf, err := decodeLeaf(data, password)
		done <- decodeResult{leaf: leaf, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &ValidationError{Kind: KindTimeout, Err: ctx.Err()}
	case res := <-done:
		return res.leaf, res.err
	}
}

// decodeLeaf returns the first certificate of the container, which PKCS#12
// producers place before any CA chain certificates.
func decodeLeaf(data []byte, password string) (leaf *x509.Certificate, err error) {
	defer func() {
		if r := recover(); r != nil {
			leaf = nil
			err = malformed(fmt.Errorf("decode container: %v", r))
		}
	}()

	_, cert, _, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, malformed(err)
		}
		// DecodeChain insists on exactly one key bag; keyless and multi-key
		// containers still carry a usable certificate bag.
		if cert := firstCertificateBag(data, password); cert != nil {
			return cert, nil
		}
		return nil, malformed(fmt.Errorf("decode container: %w", err))
	}
	if cert == nil {
		return nil, malformed(errors.New("container holds no certificate"))
	}
	return cert, nil
}

// firstCertificateBag returns the first certificate bag of a container that
// DecodeChain refused, or nil when there is none.
func firstCertificateBag(data []byte, password string) *x509.Certificate {
	if certs, err := pkcs12.DecodeTrustStore(data, password); err == nil && len(certs) > 0 {
		return certs[0]
	}

	blocks, err := pkcs12.ToPEM(data, password) //nolint:staticcheck // only certificate blocks are read
	if err != nil {
		return nil
	}
	for _, block := range blocks {
		if block.Type != "CERTIFICATE" {
			continue
		}
		if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
			return cert
		}
	}
	return nil
}
