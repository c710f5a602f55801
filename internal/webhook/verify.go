package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifySignature checks a delivery's X-Hub-Signature-256 header against the
// payload. GitHub sends "sha256=<hex digest>" computed over the raw body with
// the shared webhook secret; comparison is constant-time.
func VerifySignature(payload []byte, header, secret string) error {
	digest, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		if header == "" {
			return fmt.Errorf("missing X-Hub-Signature-256 header")
		}
		return fmt.Errorf("malformed signature header, expected sha256=<hex digest>")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(digest), []byte(expected)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
