package instagram

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

var signatureHashes = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// VerifySignature reports whether header ("<algorithm>=<hexdigest>") is the
// HMAC of body keyed with secret. Malformed headers and unknown algorithms
// yield false.
func VerifySignature(secret string, body []byte, header string) bool {
	algorithm, digest, ok := strings.Cut(header, "=")
	if !ok || strings.Contains(digest, "=") {
		return false
	}

	newHash, ok := signatureHashes[algorithm]
	if !ok {
		return false
	}

	got, err := hex.DecodeString(digest)
	if err != nil || len(got) == 0 {
		return false
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)

	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature header value for body.
func Sign(algorithm string, secret string, body []byte) (string, error) {
	newHash, ok := signatureHashes[algorithm]
	if !ok {
		return "", fmt.Errorf("unsupported signature algorithm %q", algorithm)
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)

	return algorithm + "=" + hex.EncodeToString(mac.Sum(nil)), nil
}
