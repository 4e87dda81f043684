package asset

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"fantasyrpg/shared/game/types"
)

const (
	NamePrefix   = "Fantasy RPG Character"
	ImageBaseURL = "https://solana-fantasy-rpg.vercel.app/class/"
	uriPrefix    = "data:application/json;base64,"

	traitClass  = "Class"
	traitKilled = "Monsters Killed"
	traitGold   = "Gold"
	traitHP     = "HP"
	traitExp    = "EXP"
)

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

type File struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

type Properties struct {
	Category string `json:"category"`
	Files    []File `json:"files"`
}

type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
	Properties  Properties  `json:"properties"`
}

// Name is the asset name used to recognise game characters.
func Name(class types.ClassID) string {
	return NamePrefix + " - " + string(class)
}

func imageURL(class types.ClassID) string {
	return ImageBaseURL + "class-" + strings.ToLower(string(class)) + ".png"
}

// BuildMetadata renders p as asset metadata.
func BuildMetadata(p types.PlayerData) Metadata {
	img := imageURL(p.Class)
	return Metadata{
		Name:        Name(p.Class),
		Description: fmt.Sprintf("A %s character in Fantasy RPG game", p.Class),
		Image:       img,
		Attributes: []Attribute{
			{TraitType: traitClass, Value: string(p.Class)},
			{TraitType: traitKilled, Value: p.Killed},
			{TraitType: traitGold, Value: p.Gold},
			{TraitType: traitHP, Value: p.HPOrDefault()},
			{TraitType: traitExp, Value: p.Exp},
		},
		Properties: Properties{
			Category: "image",
			Files:    []File{{URI: img, Type: "image/png"}},
		},
	}
}

// EncodeURI renders p as a base64 JSON data URI.
func EncodeURI(p types.PlayerData) (string, error) {
	b, err := json.Marshal(BuildMetadata(p))
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return uriPrefix + base64.StdEncoding.EncodeToString(b), nil
}

// DecodeURI parses a data URI produced by EncodeURI.
func DecodeURI(uri string) (Metadata, error) {
	if !strings.HasPrefix(uri, uriPrefix) {
		return Metadata{}, fmt.Errorf("unsupported metadata uri")
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, uriPrefix))
	if err != nil {
		return Metadata{}, fmt.Errorf("decode metadata uri: %w", err)
	}
	var md Metadata
	if err := json.Unmarshal(b, &md); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return md, nil
}

func (m Metadata) attr(trait string) (any, bool) {
	for _, a := range m.Attributes {
		if a.TraitType == trait && a.Value != nil {
			return a.Value, true
		}
	}
	return nil, false
}

func (m Metadata) intAttr(trait string, def int) int {
	v, ok := m.attr(trait)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return def
}

// Player reads PlayerData from the attributes. Missing attributes default
// to Warrior, 0 kills, 0 gold, 100 hp and 0 exp.
func (m Metadata) Player() types.PlayerData {
	class := types.ClassWarrior
	if v, ok := m.attr(traitClass); ok {
		if s, ok := v.(string); ok {
			if c, ok := types.ParseClass(s); ok {
				class = c
			}
		}
	}
	return types.PlayerData{
		Class:  class,
		Killed: m.intAttr(traitKilled, 0),
		Gold:   m.intAttr(traitGold, 0),
		HP:     types.IntPtr(types.ClampHP(m.intAttr(traitHP, types.DefaultHP))),
		Exp:    m.intAttr(traitExp, 0),
	}
}
