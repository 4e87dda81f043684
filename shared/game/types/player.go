package types

const (
	MaxHP     = 100
	DefaultHP = MaxHP
)

// PlayerData is one character's progression snapshot. It is passed by value;
// game logic returns updated copies instead of mutating.
type PlayerData struct {
	Class  ClassID `json:"class"`
	Killed int     `json:"killed"`
	Gold   int     `json:"gold"`
	HP     *int    `json:"hp,omitempty"`
	Exp    int     `json:"exp"`
	Owner  string  `json:"owner,omitempty"`
	Mint   string  `json:"mint,omitempty"`
}

// NewPlayer returns the data a freshly created character starts with.
func NewPlayer(class ClassID, owner string) PlayerData {
	return PlayerData{
		Class:  class,
		Killed: 0,
		Gold:   0,
		HP:     IntPtr(DefaultHP),
		Exp:    0,
		Owner:  owner,
	}
}

// HPOrDefault returns hp, or 100 when absent.
func (p PlayerData) HPOrDefault() int {
	if p.HP == nil {
		return DefaultHP
	}
	return *p.HP
}

// WithHP returns a copy with hp clamped to [0,100].
func (p PlayerData) WithHP(hp int) PlayerData {
	p.HP = IntPtr(ClampHP(hp))
	return p
}

// Clone copies the optional fields so the result shares no memory with p.
func (p PlayerData) Clone() PlayerData {
	if p.HP != nil {
		p.HP = IntPtr(*p.HP)
	}
	return p
}

func ClampHP(hp int) int {
	if hp < 0 {
		return 0
	}
	if hp > MaxHP {
		return MaxHP
	}
	return hp
}

func IntPtr(v int) *int { return &v }
