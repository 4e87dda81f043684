// Package asset is the authoritative store for character assets. Each asset
// holds a character's PlayerData encoded as NFT-style metadata.
package asset

import (
	"context"
	"fmt"

	"fantasyrpg/server/apperr"
	"fantasyrpg/shared/game/types"
)

// DefaultCollection groups every character asset for leaderboard listing.
const DefaultCollection = "Fantasy RPG"

// Store is the persistence collaborator used by sessions and the leaderboard.
type Store interface {
	// FindCharacter returns the owner's character asset id, if any.
	FindCharacter(ctx context.Context, owner string) (assetID string, found bool, err error)
	// LoadCharacter fails with apperr.CodeNotFound for unknown assets.
	LoadCharacter(ctx context.Context, assetID string) (types.PlayerData, error)
	// CreateCharacter mints a new asset for initial.Owner.
	CreateCharacter(ctx context.Context, initial types.PlayerData) (assetID string, err error)
	// SaveCharacter replaces the asset's data and returns a confirmation id.
	SaveCharacter(ctx context.Context, assetID string, p types.PlayerData) (confirmation string, err error)
	// ListCharacters returns every character in the collection with Owner
	// and Mint populated.
	ListCharacters(ctx context.Context) ([]types.PlayerData, error)
}

// Record is one stored asset.
type Record struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	URI        string `json:"uri"`
	Collection string `json:"collection"`
	CreatedAt  int64  `json:"createdAt"` // unix ms
	UpdatedAt  int64  `json:"updatedAt"` // unix ms
	LastTx     string `json:"lastTx,omitempty"`
}

// Player decodes the record's metadata and fills Owner and Mint.
func (r Record) Player() (types.PlayerData, error) {
	md, err := DecodeURI(r.URI)
	if err != nil {
		return types.PlayerData{}, err
	}
	p := md.Player()
	p.Owner = r.Owner
	p.Mint = r.ID
	return p, nil
}

// ValidateNew checks the data a character is created with.
func ValidateNew(initial types.PlayerData) error {
	if initial.Owner == "" {
		return apperr.ErrWalletNotConnected
	}
	if !initial.Class.Valid() {
		return apperr.New(apperr.CodeInvalidOperation, fmt.Sprintf("unknown class %q", initial.Class))
	}
	return nil
}
