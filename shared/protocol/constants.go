package protocol

import "time"

const (
	// Economy
	PotionPriceGold = 10
	PotionHealHP    = 20

	// Combat rolls, inclusive ranges
	GoldRollMin   = 1
	GoldRollMax   = 10
	ExpRollMin    = 1
	ExpRollMax    = 10
	LostHPRollMin = 0
	LostHPRollMax = 10

	// Below this hp the client is nagged to drink a potion.
	LowHPWarning = 10

	MaxBattleLogs = 10

	// Progress step while an attack is paced; the delay itself is
	// configured per server.
	AttackProgressTick = 100 * time.Millisecond

	DefaultCacheTTL = 180000 * time.Millisecond
)
