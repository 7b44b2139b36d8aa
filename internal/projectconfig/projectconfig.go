// Package projectconfig loads the optional .litani.yml project file that
// supplies defaults init would otherwise require on every invocation
// (project name, pool declarations). The file's parallel value is parsed
// into Config.Parallel, but no command applies it. The struct shape
// — every field tagged for both yaml and json — follows this codebase's run
// configuration file convention, so the same document could equally be
// handed to init as JSON.
package projectconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/litani-build/litani/internal/model"
)

// PoolConfig mirrors model.Pool with tags a human-edited YAML file would use.
type PoolConfig struct {
	Name  string `json:"name" yaml:"name"`
	Depth int    `json:"depth" yaml:"depth"`
}

// Config is the shape of .litani.yml.
type Config struct {
	Project  string       `json:"project,omitempty" yaml:"project,omitempty"`
	Pools    []PoolConfig `json:"pools,omitempty" yaml:"pools,omitempty"`
	Parallel int          `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

// Load reads and parses path. A missing file is not an error: callers treat
// a zero-value Config as "no project defaults declared" and fall back to
// explicit flags.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ModelPools converts the config's pool declarations into model.Pool values.
func (c Config) ModelPools() []model.Pool {
	pools := make([]model.Pool, 0, len(c.Pools))
	for _, p := range c.Pools {
		pools = append(pools, model.Pool{Name: p.Name, Depth: p.Depth})
	}
	return pools
}
