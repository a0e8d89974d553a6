package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignHex is the hex HMAC-SHA256 of the concatenated parts.
func SignHex(secret string, parts ...[]byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	for _, p := range parts {
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHex compares a received hex signature in constant time.
func VerifyHex(secret, received string, parts ...[]byte) bool {
	got, err := hex.DecodeString(received)
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(SignHex(secret, parts...))
	return hmac.Equal(got, want)
}
