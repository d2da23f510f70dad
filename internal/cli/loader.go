package cli

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Config is the runner configuration, loaded from a CUE file. Every field
// has a default so scenarios run with no config at all.
type Config struct {
	// Backend selects the default execution backend; the --backend flag
	// overrides it.
	Backend string `json:"backend"`

	// ExtraAccounts are funded at genesis in addition to the accounts the
	// scenario declares.
	ExtraAccounts []string `json:"extraAccounts"`

	// InitialFunding is the genesis coin value per account; zero keeps the
	// driver default.
	InitialFunding uint64 `json:"initialFunding"`

	ProtocolVersion  uint64 `json:"protocolVersion"`
	StartTimestampMs uint64 `json:"startTimestampMs"`
}

// DefaultConfig returns the configuration used when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		Backend:         "sim",
		ProtocolVersion: 1,
	}
}

// LoadConfig reads and evaluates a CUE config file. An empty path yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("evaluating config: %w", err)
	}
	if err := value.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Backend != "sim" && cfg.Backend != "validator" {
		return nil, fmt.Errorf("invalid backend %q: must be sim or validator", cfg.Backend)
	}
	return cfg, nil
}
