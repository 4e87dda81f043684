package protocol

import "github.com/google/uuid"

// NewID returns a random identifier for assets, battle logs and confirmations.
func NewID() string {
	return uuid.NewString()
}
