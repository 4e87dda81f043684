package types

import "strings"

type ClassID string

const (
	ClassWarrior ClassID = "Warrior"
	ClassMage    ClassID = "Mage"
	ClassArcher  ClassID = "Archer"
	ClassRogue   ClassID = "Rogue"
)

// CharacterStats are derived from class and level, never persisted.
type CharacterStats struct {
	Atk int `json:"atk"`
	Agi int `json:"agi"`
	Vit int `json:"vit"`
	Int int `json:"int"`
}

type ClassMeta struct {
	ID    ClassID
	Base  CharacterStats
	Image string // class portrait filename
}

var classRegistry = []ClassMeta{
	{ClassWarrior, CharacterStats{Atk: 5, Agi: 5, Vit: 5, Int: 0}, "class-warrior.png"},
	{ClassMage, CharacterStats{Atk: 1, Agi: 3, Vit: 4, Int: 7}, "class-mage.png"},
	{ClassArcher, CharacterStats{Atk: 4, Agi: 6, Vit: 2, Int: 3}, "class-archer.png"},
	{ClassRogue, CharacterStats{Atk: 4, Agi: 7, Vit: 4, Int: 0}, "class-rogue.png"},
}

// ListClasses returns the selectable classes in display order.
func ListClasses() []ClassMeta {
	out := make([]ClassMeta, len(classRegistry))
	copy(out, classRegistry)
	return out
}

// GetClassMeta returns nil for classes outside the fixed set.
func GetClassMeta(id ClassID) *ClassMeta {
	for i := range classRegistry {
		if classRegistry[i].ID == id {
			m := classRegistry[i]
			return &m
		}
	}
	return nil
}

// ParseClass matches a class name case-insensitively.
func ParseClass(name string) (ClassID, bool) {
	name = strings.TrimSpace(name)
	for _, m := range classRegistry {
		if strings.EqualFold(string(m.ID), name) {
			return m.ID, true
		}
	}
	return "", false
}

func (c ClassID) Valid() bool { return GetClassMeta(c) != nil }
