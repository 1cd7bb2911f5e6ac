package rules

import (
	"github.com/expr-lang/expr/vm"
)

// Rule is a named tile predicate. The engine evaluates rules by priority and
// uses Category + Exclusive so a tile lands in at most one exclusive rule per category.
type Rule struct {
	Name         string      // human-readable identifier
	Priority     int         // higher = evaluated first
	Category     string      // grouping for exclusive semantics
	Exclusive    bool        // if true, a match blocks lower-priority rules in the same category for that tile
	ConditionSrc string      // expr source (preserved for serialization)
	program      *vm.Program // compiled bytecode
}

// DefaultRules classify a room the way most layout code needs it.
func DefaultRules() []*Rule {
	return []*Rule{
		{Name: "wall", Priority: 300, Category: "terrain", Exclusive: true, ConditionSrc: `IsWall()`},
		{Name: "swamp", Priority: 200, Category: "terrain", Exclusive: true, ConditionSrc: `IsSwamp()`},
		{Name: "lava", Priority: 250, Category: "terrain", Exclusive: true, ConditionSrc: `IsLava()`},
		{Name: "plain", Priority: 100, Category: "terrain", Exclusive: true, ConditionSrc: `IsPlain()`},
		{Name: "exit", Priority: 100, Category: "edge", ConditionSrc: `IsExit()`},
		// Construction stays off the border ring and the ring next to it.
		{Name: "buildable", Priority: 50, Category: "layout", ConditionSrc: `Walkable() && X > 1 && X < 48 && Y > 1 && Y < 48`},
		{Name: "open", Priority: 40, Category: "layout", ConditionSrc: `Walkable() && WallsAround() == 0`},
	}
}
