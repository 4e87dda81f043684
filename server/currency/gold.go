package currency

import (
	"fmt"

	"fantasyrpg/server/apperr"
	"fantasyrpg/shared/game/types"
)

// Grant returns a copy of p with amount gold added.
func Grant(p types.PlayerData, amount int) (types.PlayerData, error) {
	if amount <= 0 {
		return p, apperr.New(apperr.CodeInvalidOperation, "Amount must be > 0")
	}
	out := p.Clone()
	out.Gold += amount
	return out, nil
}

// Spend returns a copy of p with amount gold removed. Balances never go
// negative; p is returned unchanged on failure.
func Spend(p types.PlayerData, amount int) (types.PlayerData, error) {
	if amount <= 0 {
		return p, apperr.New(apperr.CodeInvalidOperation, "Amount must be > 0")
	}
	if p.Gold < amount {
		return p, apperr.New(apperr.CodeInvalidOperation, fmt.Sprintf("Not enough gold: have %d, need %d", p.Gold, amount))
	}
	out := p.Clone()
	out.Gold -= amount
	return out, nil
}
