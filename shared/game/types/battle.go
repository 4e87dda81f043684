package types

type Monster string

const (
	MonsterSlime  Monster = "Slime"
	MonsterGoblin Monster = "Goblin"
	MonsterOrc    Monster = "Orc"
	MonsterWolf   Monster = "Wolf"
)

var Monsters = []Monster{MonsterSlime, MonsterGoblin, MonsterOrc, MonsterWolf}

// BattleLog records one resolved attack. Logs are advisory and only kept in
// the local cache.
type BattleLog struct {
	ID          string  `json:"id"`
	Monster     Monster `json:"monster"`
	GoldEarned  int     `json:"goldEarned"`
	ExpEarned   int     `json:"expEarned"`
	LostHP      int     `json:"lostHp"`
	Timestamp   int64   `json:"timestamp"` // unix ms
	TxSignature string  `json:"txSignature"`
}
