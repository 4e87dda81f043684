package progression

import (
	"fmt"

	"fantasyrpg/server/apperr"
	"fantasyrpg/shared/game/types"
)

// ComputeStats applies +1 per level above 1 to every attribute of the class
// baseline.
func ComputeStats(class types.ClassID, level int) (types.CharacterStats, error) {
	meta := types.GetClassMeta(class)
	if meta == nil {
		return types.CharacterStats{}, apperr.New(apperr.CodeInvalidOperation, fmt.Sprintf("unknown class %q", class))
	}
	if level < 1 {
		level = 1
	}
	bonus := level - 1
	return types.CharacterStats{
		Atk: meta.Base.Atk + bonus,
		Agi: meta.Base.Agi + bonus,
		Vit: meta.Base.Vit + bonus,
		Int: meta.Base.Int + bonus,
	}, nil
}
