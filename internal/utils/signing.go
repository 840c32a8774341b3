package utils

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON re-encodes b with object keys sorted at every level and
// numbers kept verbatim. Invalid JSON is returned unchanged.
func CanonicalJSON(b []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return b
	}
	// encoding/json writes map keys in sorted order
	out, err := json.Marshal(v)
	if err != nil {
		return b
	}
	return out
}

// SignPayload computes a hex HMAC-SHA256 over "{ts}.{canonical payload}".
func SignPayload(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(CanonicalJSON(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayload checks a signature produced by SignPayload.
func VerifyPayload(secret string, timestamp int64, payload []byte, givenSigHex string) bool {
	got, err := hex.DecodeString(givenSigHex)
	if err != nil {
		return false
	}
	exp, _ := hex.DecodeString(SignPayload(secret, timestamp, payload))
	return hmac.Equal(exp, got)
}
