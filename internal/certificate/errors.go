package certificate

import (
	"errors"
	"fmt"
)

// Kind classifies why a container was refused.
type Kind string

const (
	KindMalformedOrWrongPassword Kind = "malformed_or_wrong_password"
	KindUntrustedIssuer          Kind = "untrusted_issuer"
	KindExpiredOrNotYetValid     Kind = "expired_or_not_yet_valid"
	KindTimeout                  Kind = "timeout"
)

// ValidationError is returned by Validate for every refusal. Detail carries the
// issuer CN for KindUntrustedIssuer; Err carries the decoder error when present.
type ValidationError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *ValidationError) Error() string {
	return "Certificate validation failed: " + e.reason()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) reason() string {
	switch e.Kind {
	case KindUntrustedIssuer:
		return fmt.Sprintf("Untrusted issuer: %s. Certificate must be issued by %s.", e.Detail, TrustedIssuerCN)
	case KindExpiredOrNotYetValid:
		return "Certificate is expired or not yet valid."
	case KindTimeout:
		return "certificate decoding timed out"
	default:
		if e.Err != nil {
			return "unable to decrypt certificate container: " + e.Err.Error()
		}
		return "unable to decrypt certificate container"
	}
}

// KindOf returns the kind of a ValidationError in err's chain.
func KindOf(err error) (Kind, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}

func malformed(err error) *ValidationError {
	return &ValidationError{Kind: KindMalformedOrWrongPassword, Err: err}
}
