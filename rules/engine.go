package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/nstehr/creep/creep-core/model"
)

// Engine runs compiled tile rules against room snapshots.
// Rules fire in priority order; exclusive rules block lower-priority rules
// in the same category for the same tile.
type Engine struct {
	mu    sync.RWMutex
	rules []*Rule
}

// NewEngine compiles all rule conditions into expr bytecode and sorts by priority.
func NewEngine(rules []*Rule) (*Engine, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Engine{rules: compiled}, nil
}

// Classification maps rule name to the tiles it matched, in index order.
type Classification map[string][]model.Coord

// Counts reduces a classification to matched tile counts per rule.
func (c Classification) Counts() map[string]int {
	out := make(map[string]int, len(c))
	for name, tiles := range c {
		out[name] = len(tiles)
	}
	return out
}

// Classify evaluates every rule on every tile of the snapshot.
func (e *Engine) Classify(snap model.RoomSnapshot) (Classification, error) {
	if snap.IsZero() {
		return nil, fmt.Errorf("classify: %w: empty snapshot", model.ErrInvalidRoom)
	}

	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	out := make(Classification, len(rules))
	for _, r := range rules {
		out[r.Name] = nil
	}

	for i := range model.RoomArea {
		c, _ := model.CoordFromIndex(i)
		env := newTileEnv(snap, c)
		fired := make(map[string]bool) // category → exclusive rule already matched this tile

		for _, r := range rules {
			if fired[r.Category] {
				continue
			}
			match, err := run(r.program, env)
			if err != nil {
				return nil, fmt.Errorf("rule %q at %v: %w", r.Name, c, err)
			}
			if !match {
				continue
			}
			out[r.Name] = append(out[r.Name], c)
			if r.Exclusive {
				fired[r.Category] = true
			}
		}
	}
	return out, nil
}

// Select compiles an ad-hoc condition and returns the tiles it matches.
func Select(snap model.RoomSnapshot, condition string) ([]model.Coord, error) {
	if snap.IsZero() {
		return nil, fmt.Errorf("select: %w: empty snapshot", model.ErrInvalidRoom)
	}
	prog, err := compile(condition)
	if err != nil {
		return nil, err
	}

	var out []model.Coord
	for i := range model.RoomArea {
		c, _ := model.CoordFromIndex(i)
		match, err := run(prog, newTileEnv(snap, c))
		if err != nil {
			return nil, fmt.Errorf("select at %v: %w", c, err)
		}
		if match {
			out = append(out, c)
		}
	}
	return out, nil
}

// Swap atomically replaces the rule set. Compiles first; if compilation fails
// the old rules remain active.
func (e *Engine) Swap(newRules []*Rule) error {
	compiled, err := compileRules(newRules)
	if err != nil {
		return err
	}
	names := make([]string, len(compiled))
	for i, r := range compiled {
		names[i] = r.Name
	}
	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()
	slog.Info("rule set swapped", "count", len(compiled), "rules", names)
	return nil
}

// Rules returns the active rules in evaluation order.
func (e *Engine) Rules() []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Rule(nil), e.rules...)
}

func compile(src string) (*vm.Program, error) {
	prog, err := expr.Compile(src, expr.Env(TileEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return prog, nil
}

func run(prog *vm.Program, env TileEnv) (bool, error) {
	result, err := vm.Run(prog, env)
	if err != nil {
		return false, err
	}
	match, _ := result.(bool)
	return match, nil
}

// compileRules compiles copies of rules, so the caller's slice and the rules
// handed out by Rules are never written.
func compileRules(rules []*Rule) ([]*Rule, error) {
	seen := make(map[string]bool, len(rules))
	compiled := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("compile rule: missing name for %q", r.ConditionSrc)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("compile rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = true

		prog, err := compile(r.ConditionSrc)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, err)
		}
		c := *r
		c.program = prog
		compiled = append(compiled, &c)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})
	return compiled, nil
}
