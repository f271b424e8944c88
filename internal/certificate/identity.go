package certificate

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// TrustedIssuerCN is the only certificate authority accepted for onboarding.
const TrustedIssuerCN = "CamGovCA"

// NotAvailable is reported when a name carries no common name.
const NotAvailable = "N/A"

// Attribute is one (shortName, value) pair of a distinguished name.
type Attribute struct {
	ShortName string `json:"short_name"`
	Value     string `json:"value"`
}

func (a Attribute) String() string {
	return a.ShortName + "=" + a.Value
}

// Identity is the data extracted from a validated leaf certificate.
// Subject and Issuer keep every attribute in encoded order.
type Identity struct {
	Subject      []Attribute
	Issuer       []Attribute
	SerialNumber string
	ValidFrom    time.Time
	ValidTo      time.Time
}

// SubjectCN returns the first CN of the subject or NotAvailable.
func (i *Identity) SubjectCN() string {
	return CommonName(i.Subject)
}

// IssuerCN returns the first CN of the issuer or NotAvailable.
func (i *Identity) IssuerCN() string {
	return CommonName(i.Issuer)
}

// CommonName scans attrs for the first CN pair.
func CommonName(attrs []Attribute) string {
	for _, a := range attrs {
		if a.ShortName == "CN" {
			return a.Value
		}
	}
	return NotAvailable
}

// Strings renders attrs as "SN=value" entries for storage.
func Strings(attrs []Attribute) []string {
	out := make([]string, len(attrs))
	for i, a := range attrs {
		out[i] = a.String()
	}
	return out
}

// FormatSerial renders a serial number as lowercase hex of its DER INTEGER
// content octets, so a positive serial with the high bit set keeps its leading
// 00 byte and a negative serial keeps its two's complement form.
func FormatSerial(serial *big.Int) string {
	if serial == nil {
		return "00"
	}
	der, err := asn1.Marshal(serial)
	if err != nil {
		return hex.EncodeToString(serial.Bytes())
	}
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(der, &raw); err != nil || len(raw.Bytes) == 0 {
		return hex.EncodeToString(serial.Bytes())
	}
	return hex.EncodeToString(raw.Bytes)
}

var shortNames = map[string]string{
	"2.5.4.3":              "CN",
	"2.5.4.4":              "SN",
	"2.5.4.5":              "serialNumber",
	"2.5.4.6":              "C",
	"2.5.4.7":              "L",
	"2.5.4.8":              "ST",
	"2.5.4.9":              "STREET",
	"2.5.4.10":             "O",
	"2.5.4.11":             "OU",
	"2.5.4.12":             "title",
	"2.5.4.17":             "postalCode",
	"2.5.4.42":             "GN",
	"2.5.4.97":             "organizationIdentifier",
	"1.2.840.113549.1.9.1": "E",
}

func shortName(oid asn1.ObjectIdentifier) string {
	if name, ok := shortNames[oid.String()]; ok {
		return name
	}
	return oid.String()
}

func attributes(name pkix.Name) []Attribute {
	attrs := make([]Attribute, 0, len(name.Names))
	for _, atv := range name.Names {
		attrs = append(attrs, Attribute{
			ShortName: shortName(atv.Type),
			Value:     fmt.Sprint(atv.Value),
		})
	}
	return attrs
}

func identityFrom(cert *x509.Certificate) *Identity {
	return &Identity{
		Subject:      attributes(cert.Subject),
		Issuer:       attributes(cert.Issuer),
		SerialNumber: FormatSerial(cert.SerialNumber),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
}
