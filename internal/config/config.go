// Package config loads loxi's runtime configuration: interpreter
// behavior toggles and garbage-collector tuning knobs that spec §9
// leaves as an "implementation configuration surface" rather than
// fixing a single behavior.
//
// Flags set on the command line take precedence; an optional
// .loxi.toml (in the current directory, or pointed to by -config)
// supplies defaults for anything the flags didn't set.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config mirrors the knobs spec.md §9 and SPEC_FULL.md §2/§6 call out:
// the uninitialized-variable read behavior and the GC's environment/
// pin-stack caps.
type Config struct {
	// StrictUninitializedVariables makes reading a `var x;` declared
	// without an initializer a runtime error ("Accessing uninitialized
	// variable 'x'.") instead of yielding Nil. Off by default, per the
	// Open Question in spec §4.2/§9.
	StrictUninitializedVariables bool `toml:"strict_uninitialized_variables"`

	// MaxEnvironments and PinStackDepth override the GC's default caps
	// (§4.3's ~31*1024 and 4096). Zero means "use the default."
	MaxEnvironments int32 `toml:"max_environments"`
	PinStackDepth   int   `toml:"pin_stack_depth"`

	// GCTrace enables the -gc-trace diagnostic logging hook.
	GCTrace bool `toml:"gc_trace"`

	// Verbose raises the zerolog level from Info to Debug.
	Verbose bool `toml:"verbose"`
}

// Default returns the off-by-default configuration described in §9.
func Default() Config {
	return Config{}
}

// Load reads path (if non-empty and the file exists) as TOML and
// returns a Config with its values as defaults. A missing path is not
// an error: loxi runs with Default() when no .loxi.toml is present.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "loading config file %q", path)
	}
	return cfg, nil
}

// Merge overlays flag-supplied overrides onto a file-loaded Config; a
// numeric override left at zero doesn't clobber the file's setting,
// but the three bools are always taken from override, since a zero bool
// can't distinguish "flag not passed" from "flag passed as false".
// cmd/loxi therefore starts override as a copy of the file-loaded
// Config and overwrites only the flags the user actually set (tracked
// with flag.Visit).
func (c Config) Merge(override Config) Config {
	merged := c
	if override.MaxEnvironments != 0 {
		merged.MaxEnvironments = override.MaxEnvironments
	}
	if override.PinStackDepth != 0 {
		merged.PinStackDepth = override.PinStackDepth
	}
	merged.StrictUninitializedVariables = override.StrictUninitializedVariables
	merged.GCTrace = override.GCTrace
	merged.Verbose = override.Verbose
	return merged
}
