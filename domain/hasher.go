package domain

// Hasher fingerprints prompts so call logs can be correlated without
// carrying the full prompt text.
type Hasher interface {
	Hash(data []byte) string
}
