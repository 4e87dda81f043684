package shop

import (
	"fantasyrpg/server/apperr"
	"fantasyrpg/server/currency"
	"fantasyrpg/shared/game/types"
	"fantasyrpg/shared/protocol"
)

var (
	errFullHealth    = apperr.New(apperr.CodeInvalidOperation, "You dont need to buy it.")
	errNotEnoughGold = apperr.New(apperr.CodeInvalidOperation, "Not enough gold to buy potion")
)

// BuyPotion heals 20 hp (capped at 100) for 10 gold. It refuses at full
// health and when gold is short, leaving p untouched.
func BuyPotion(p types.PlayerData) (types.PlayerData, error) {
	if p.HPOrDefault() >= types.MaxHP {
		return p, errFullHealth
	}
	if p.Gold < protocol.PotionPriceGold {
		return p, errNotEnoughGold
	}
	out, err := currency.Spend(p, protocol.PotionPriceGold)
	if err != nil {
		return p, err
	}
	return out.WithHP(p.HPOrDefault() + protocol.PotionHealHP), nil
}
