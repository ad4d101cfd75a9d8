package weft

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the .weft.yaml project configuration file. It only
// configures the surrounding tooling; the engine itself needs no
// configuration.
type Config struct {
	Check CheckConfig `yaml:"check,omitempty"`
}

// CheckConfig holds settings for the check command.
type CheckConfig struct {
	// Include restricts checking to files whose base name matches one of
	// these glob patterns. Empty means all YAML files.
	Include []string `yaml:"include,omitempty"`

	// Strict is decoded from the file, but the check command does not read
	// it: check reports parse errors only, with or without Strict.
	Strict bool `yaml:"strict,omitempty"`
}

// Candidate file names, in priority order within each directory.
var configNames = [...]string{".weft.yaml", ".weft.yml", "weft.yaml", "weft.yml"}

// LoadConfig decodes the nearest project config, trying each candidate
// name in every directory from dir up to the filesystem root. The first
// file that can be read wins, even if it fails to decode: a broken
// config is reported rather than silently shadowed by one further up.
// The returned path names the file that was used.
func LoadConfig(dir string) (*Config, string, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", err
	}

	for cur := start; ; cur = filepath.Dir(cur) {
		for _, name := range configNames {
			path := filepath.Join(cur, name)

			data, err := os.ReadFile(path) //nolint:gosec // G304: walking the caller's own tree
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			if err != nil {
				return nil, "", err
			}

			cfg, err := parseConfig(data)
			if err != nil {
				return nil, "", fmt.Errorf("%s: %w", path, err)
			}

			return cfg, path, nil
		}

		if filepath.Dir(cur) == cur {
			return nil, "", fmt.Errorf("%w (searched from %s upward)", ErrConfigNotFound, start)
		}
	}
}

// parseConfig decodes config data strictly: unknown keys are errors, so
// a typo in .weft.yaml surfaces instead of being ignored. An empty file
// is a valid, zero config.
func parseConfig(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return &cfg, nil
}

// Matches reports whether the given file should be checked under this
// configuration.
func (c *CheckConfig) Matches(path string) bool {
	if len(c.Include) == 0 {
		return true
	}

	base := filepath.Base(path)

	for _, pattern := range c.Include {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
