package protocol

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Owner  string `json:"owner"`
	Mint   string `json:"mint"`
	Class  string `json:"class"`
	Killed int    `json:"killed"`
	Exp    int    `json:"exp"`
	Gold   int    `json:"gold"`
	Level  int    `json:"level"`
}

type Leaderboard struct {
	Order       string             `json:"order"`
	Items       []LeaderboardEntry `json:"items"`
	GeneratedAt int64              `json:"generated_at"` // Unix ms (optional, for cache/debug)
}
