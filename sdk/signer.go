package sdk

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Sign computes the x-signature value for one request: lowercase hex of
// HMAC-SHA1(secret, timestamp "\n" METHOD "\n" path ["\n" body]).
// The body segment is present only when body is non-empty. path must not
// include the query string.
func Sign(secret, timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(path))
	if len(body) > 0 {
		mac.Write([]byte{'\n'})
		mac.Write(body)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the request inputs.
// The comparison is constant time.
func Verify(secret, timestamp, method, path string, body []byte, signature string) bool {
	expected := Sign(secret, timestamp, method, path, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// signer binds Sign to a secret and a clock.
type signer struct {
	secret string
	now    func() time.Time
}

func newSigner(secret string) *signer {
	return &signer{secret: secret, now: time.Now}
}

// sign returns the timestamp it captured together with the signature so
// both headers always agree.
func (s *signer) sign(method, path string, body []byte) (timestamp, signature string) {
	timestamp = strconv.FormatInt(s.now().Unix(), 10)
	return timestamp, Sign(s.secret, timestamp, method, path, body)
}
