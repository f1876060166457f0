package utils

import (
	"crypto/rand"   // Secure random source
	"crypto/sha256" // Visitor hashing
	"encoding/hex"  // Hash encoding
	"math/big"      // Uniform index selection
)

// codeAlphabet omits easily confused characters
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandomCode returns n characters drawn uniformly from codeAlphabet
func RandomCode(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// HashVisitor derives a stable anonymous visitor id from request attributes
func HashVisitor(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
