package chat

import (
	"encoding/json"

	"fractalscan/domain/core"
)

// Fingerprint hashes the normalized batch so repeated submissions of the same
// logs can be correlated in the ledger. Input order is significant.
func Fingerprint(msgs []Message) core.Hash {
	data, err := json.Marshal(msgs)
	if err != nil {
		// Message holds only strings and integers; Marshal cannot fail on it.
		return ""
	}
	return core.NewHash(data)
}
