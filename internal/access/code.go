package access

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet omits 0, O, 1, I and L so codes survive being read aloud.
const (
	Alphabet   = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	CodeLength = 8
)

// GenerateCode returns a fresh random learner code. Codes carry no identity;
// uniqueness is enforced by the learners table.
func GenerateCode() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, CodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}

// Normalize upper-cases and trims a code and reports whether it is well formed.
func Normalize(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != CodeLength {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return "", false
		}
	}
	return code, true
}
