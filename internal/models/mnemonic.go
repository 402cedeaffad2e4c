package models

import "time"

// MnemonicWordCount is the fixed length of a registration passphrase.
const MnemonicWordCount = 24

// Mnemonic is a one-time 24-word passphrase used as a registration or
// login credential. Pending/consumed state is tracked by the store, not
// on the record itself.
type Mnemonic struct {
	ID        string    `json:"id"`
	Phrase    string    `json:"phrase"`
	CreatedAt time.Time `json:"created_at"`
}
