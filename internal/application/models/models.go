// Package models holds the onboarding application record.
package models

import "time"

// Submission is everything persisted for one accepted onboarding request.
// SubjectAttributes and IssuerAttributes keep the full distinguished names as
// "SN=value" entries in certificate order.
type Submission struct {
	FullName          string
	EmailAddress      string
	SignatureBase64   string
	IDCardPath        string
	SubjectCN         string
	IssuerCN          string
	SerialNumber      string
	ValidFrom         time.Time
	ValidTo           time.Time
	SubjectAttributes []string
	IssuerAttributes  []string
}

// Application is a stored submission.
type Application struct {
	ID int64
	Submission
	CreatedAt time.Time
}

// Summary is the reviewer-facing view of an application. The applicant's
// signature is never exposed.
type Summary struct {
	ID                int64     `json:"id"`
	FullName          string    `json:"fullName"`
	EmailAddress      string    `json:"emailAddress"`
	IDCardPath        string    `json:"idCardPath"`
	SubjectCN         string    `json:"certificateSubjectName"`
	IssuerCN          string    `json:"certificateIssuerName"`
	SerialNumber      string    `json:"certificateSerialNumber"`
	ValidFrom         time.Time `json:"certificateValidFrom"`
	ValidTo           time.Time `json:"certificateValidTo"`
	SubjectAttributes []string  `json:"certificateSubject"`
	IssuerAttributes  []string  `json:"certificateIssuer"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ToSummary drops the signature from a.
func (a *Application) ToSummary() Summary {
	return Summary{
		ID:                a.ID,
		FullName:          a.FullName,
		EmailAddress:      a.EmailAddress,
		IDCardPath:        a.IDCardPath,
		SubjectCN:         a.SubjectCN,
		IssuerCN:          a.IssuerCN,
		SerialNumber:      a.SerialNumber,
		ValidFrom:         a.ValidFrom,
		ValidTo:           a.ValidTo,
		SubjectAttributes: nonNil(a.SubjectAttributes),
		IssuerAttributes:  nonNil(a.IssuerAttributes),
		CreatedAt:         a.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
