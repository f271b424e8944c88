// Package models holds the onboarding request and response shapes.
package models

import "onboard/internal/certificate"

// Form field names of the onboarding multipart request.
const (
	FieldCertificatePassword = "certificatePassword"
	FieldFullName            = "fullName"
	FieldEmailAddress        = "emailAddress"
	FieldSignatureBase64     = "signatureBase64"
)

// Form is the text part of an onboarding submission.
type Form struct {
	CertificatePassword string
	FullName            string
	EmailAddress        string
	SignatureBase64     string
}

// FormFromValues picks the onboarding fields out of decoded multipart values.
func FormFromValues(values map[string]string) Form {
	return Form{
		CertificatePassword: values[FieldCertificatePassword],
		FullName:            values[FieldFullName],
		EmailAddress:        values[FieldEmailAddress],
		SignatureBase64:     values[FieldSignatureBase64],
	}
}

// Complete reports whether every required text field is non-empty.
func (f Form) Complete() bool {
	return f.CertificatePassword != "" &&
		f.FullName != "" &&
		f.EmailAddress != "" &&
		f.SignatureBase64 != ""
}

// Result is the outcome of an accepted submission.
type Result struct {
	ApplicationID int64
	Identity      *certificate.Identity
}

// SubmitResponse is returned with 201 Created.
type SubmitResponse struct {
	Message       string `json:"message"`
	ApplicationID int64  `json:"applicationId"`
}

// WelcomeResponse is returned by the root endpoint.
type WelcomeResponse struct {
	Message string `json:"message"`
}

const (
	SubmitSuccessMessage = "Application submitted and validated successfully!"
	SubmitFailureMessage = "Application submission failed."
	WelcomeMessage       = "Welcome to the ANTIC Onboarding API! The server is running."
)
