package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"

	"github.com/LavaJover/shvark-payment-service/internal/domain"
)

// SharedSecretScheme compares the header against a secret hash configured on
// the provider dashboard (Flutterwave "verif-hash").
type SharedSecretScheme struct {
	Header string
	Secret string
}

func (s SharedSecretScheme) SignatureHeader() string { return s.Header }

func (s SharedSecretScheme) VerifySignature(signature string, payload []byte) error {
	if s.Secret == "" || signature == "" {
		return domain.ErrSignatureInvalid
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(s.Secret)) != 1 {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// HMACScheme expects the hex HMAC of the raw body in Header.
type HMACScheme struct {
	Header string
	Secret string
	Hash   func() hash.Hash
}

func NewHMACSHA256Scheme(header, secret string) HMACScheme {
	return HMACScheme{Header: header, Secret: secret, Hash: sha256.New}
}

func NewHMACSHA512Scheme(header, secret string) HMACScheme {
	return HMACScheme{Header: header, Secret: secret, Hash: sha512.New}
}

func (s HMACScheme) SignatureHeader() string { return s.Header }

func (s HMACScheme) VerifySignature(signature string, payload []byte) error {
	if s.Secret == "" || signature == "" {
		return domain.ErrSignatureInvalid
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return domain.ErrSignatureInvalid
	}
	if !hmac.Equal(got, ComputeHMAC(s.Hash, s.Secret, payload)) {
		return domain.ErrSignatureInvalid
	}
	return nil
}

func ComputeHMAC(h func() hash.Hash, secret string, payload []byte) []byte {
	mac := hmac.New(h, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// TimestampedScheme verifies "t=<unix>,v1=<hex>" headers signed over
// "<t>.<body>" with HMAC-SHA256, rejecting timestamps outside Tolerance.
type TimestampedScheme struct {
	Header    string
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

const DefaultTimestampTolerance = 5 * time.Minute

func (s TimestampedScheme) SignatureHeader() string { return s.Header }

func (s TimestampedScheme) VerifySignature(signature string, payload []byte) error {
	if s.Secret == "" || signature == "" {
		return domain.ErrSignatureInvalid
	}

	var timestamp string
	var candidates [][]byte
	for _, part := range strings.Split(signature, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			if sig, err := hex.DecodeString(value); err == nil {
				candidates = append(candidates, sig)
			}
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return domain.ErrSignatureInvalid
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return domain.ErrSignatureInvalid
	}
	tolerance := s.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTimestampTolerance
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	age := now().Sub(time.Unix(unix, 0))
	if age > tolerance || age < -tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrSignatureInvalid)
	}

	expected := ComputeHMAC(sha256.New, s.Secret, signedPayload(timestamp, payload))
	for _, candidate := range candidates {
		if hmac.Equal(candidate, expected) {
			return nil
		}
	}
	return domain.ErrSignatureInvalid
}

// SignTimestamped builds a header value accepted by TimestampedScheme.
func SignTimestamped(secret string, at time.Time, payload []byte) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := ComputeHMAC(sha256.New, secret, signedPayload(timestamp, payload))
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac)
}

func signedPayload(timestamp string, payload []byte) []byte {
	out := make([]byte, 0, len(timestamp)+1+len(payload))
	out = append(out, timestamp...)
	out = append(out, '.')
	return append(out, payload...)
}
