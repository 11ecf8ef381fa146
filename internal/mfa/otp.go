// Package mfa implements TOTP enrollment and verification.
package mfa

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// secretSize is the entropy of generated secrets in bytes (base32-encoded for the user).
	secretSize = 32
	period     = 30
	// skew is the number of time steps accepted either side of the current one.
	skew     = 2
	qrWidth  = 200
	qrHeight = 200
)

// Enrollment is returned when a user starts TOTP setup.
type Enrollment struct {
	Secret string `json:"secret"`
	// OTPAuthURL is the otpauth:// provisioning URI.
	OTPAuthURL string `json:"otpauthUrl"`
	// QRCode is the provisioning URI rendered as a PNG data URL.
	QRCode string `json:"qrCode"`
}

// TOTP generates and validates RFC 6238 codes (SHA1, 6 digits, 30s period).
type TOTP struct {
	issuer string
	now    func() time.Time
}

// NewTOTP returns a TOTP manager whose provisioning URIs carry issuer. A nil now uses the wall clock.
func NewTOTP(issuer string, now func() time.Time) *TOTP {
	if now == nil {
		now = time.Now
	}
	return &TOTP{issuer: issuer, now: now}
}

// Generate creates a new random secret for accountName (usually the user's email) and its QR code.
func (m *TOTP) Generate(accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
		Period:      period,
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}
	img, err := key.Image(qrWidth, qrHeight)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return &Enrollment{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		QRCode:     "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate reports whether code is valid for secret within ±2 time steps of now.
func (m *TOTP) Validate(secret, code string) bool {
	if secret == "" || len(code) != 6 {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, m.now().UTC(), validateOpts())
	return err == nil && ok
}

// CodeAt returns the code for secret at t.
func (m *TOTP) CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), validateOpts())
}

func validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}
