package config

import (
	"fmt"

	"github.com/nstehr/creep/creep-core/rules"
)

// ReloadRules reads the config at path and swaps its tile rules into engine.
// On any error the engine keeps its current rules.
func ReloadRules(path string, engine *rules.Engine) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	if err := engine.Swap(cfg.TileRules()); err != nil {
		return fmt.Errorf("reloading rules from %s: %w", path, err)
	}
	return nil
}
