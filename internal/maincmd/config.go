package maincmd

import (
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// rcFileName is the optional per-directory configuration file, searched
// for in the current working directory only (no parent-directory walk,
// unlike the original's module search path).
const rcFileName = ".funscriptrc.yaml"

// Config carries the ambient knobs spec.md §6 and §7 leave to the
// embedding host: the module loader's search directory, and the two
// VM tuning caps (heap budget, step limit) original_source's
// DefaultAllocator/VM::Config expose as constructor parameters.
type Config struct {
	ModulesPath string `yaml:"modules_path" env:"FUNSCRIPT_MODULES_PATH"`
	HeapBytes   uint64 `yaml:"heap_bytes" env:"FUNSCRIPT_HEAP_BYTES"`
	MaxSteps    int64  `yaml:"max_steps" env:"FUNSCRIPT_MAX_STEPS"`
}

// LoadConfig reads rcFileName from the current directory, if present, then
// lets environment variables override whatever the file set (or leaves the
// file's value untouched when the matching variable is unset, since
// env.Parse never zeroes a field it finds no variable for).
func LoadConfig() (Config, error) {
	var cfg Config

	if data, err := os.ReadFile(rcFileName); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
