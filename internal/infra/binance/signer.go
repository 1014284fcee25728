package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// Signer produces Binance-style request signatures. Keys are stored as
// []byte so they can be wiped from memory on shutdown.
type Signer struct {
	apiKey    []byte
	secretKey []byte
}

// NewSigner creates a new signer.
func NewSigner(apiKey, secretKey string) *Signer {
	return &Signer{
		apiKey:    []byte(apiKey),
		secretKey: []byte(secretKey),
	}
}

// APIKey returns the key sent in the X-MBX-APIKEY header.
func (s *Signer) APIKey() string {
	return string(s.apiKey)
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	wipeSlice(s.apiKey)
	wipeSlice(s.secretKey)
}

func wipeSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Canonicalize renders params as the exchange expects them signed: keys
// sorted lexicographically, values URL-encoded, joined with '&'. The
// signature is computed over exactly this string; any other ordering is
// rejected upstream.
func Canonicalize(params url.Values) string {
	return params.Encode() // url.Values.Encode sorts by key
}

// SignedQuery canonicalizes params and appends the HMAC-SHA256 signature
// as the trailing query parameter.
func (s *Signer) SignedQuery(params url.Values) string {
	canonical := Canonicalize(params)
	return canonical + "&signature=" + s.sign(canonical)
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
