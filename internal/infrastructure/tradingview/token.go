package tradingview

import "math/rand"

// Session identifiers reuse the upstream's token alphabet: 12 lowercase
// alphanumerics behind a purpose prefix ("cs_" for chart sessions).
const (
	tokenChars  = "abcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength = 12
)

func sessionToken(prefix string) string {
	b := make([]byte, tokenLength)
	for i := range b {
		b[i] = tokenChars[rand.Intn(len(tokenChars))]
	}
	return prefix + string(b)
}
