package session

import "crypto/rand"

const codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// CodeLength matches the codes the landing page has always generated.
const CodeLength = 9

// NewCode returns a random base36 session code. Uniqueness is probabilistic,
// not enforced: create-session on a colliding code just attaches to it.
func NewCode() string {
	bytes := make([]byte, CodeLength)
	_, _ = rand.Read(bytes)
	for i, b := range bytes {
		bytes[i] = codeAlphabet[b%byte(len(codeAlphabet))]
	}
	return string(bytes)
}
