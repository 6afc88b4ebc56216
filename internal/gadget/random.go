package gadget

import "math/rand/v2"

// CodeGenerator produces self-destruct confirmation codes. Codes are
// cosmetic acknowledgements, not secrets, and are never stored.
type CodeGenerator func() string

// ProbabilityEstimator returns a mission success percentage in [0, 100).
// A new value is drawn on every read and never stored.
type ProbabilityEstimator func() int

const (
	confirmationCodeLength   = 6
	confirmationCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// RandomConfirmationCode returns six lowercase alphanumeric characters.
func RandomConfirmationCode() string {
	b := make([]byte, confirmationCodeLength)
	for i := range b {
		b[i] = confirmationCodeAlphabet[rand.IntN(len(confirmationCodeAlphabet))] //nolint:gosec // cosmetic, not a secret
	}
	return string(b)
}

// RandomProbability returns a uniformly drawn integer in [0, 100).
func RandomProbability() int {
	return rand.IntN(100) //nolint:gosec // cosmetic, not a secret
}
