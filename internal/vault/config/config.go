// Package config handles configuration for the vault: defaults plus a
// command-line flag overlay for the CLI binary.
package config

// Config holds runtime settings for the vault.
//
// Fields:
//   - StorageRoot: directory holding users.json, sessions.json,
//     blockchain.json, and the documents/ subdirectory.
//   - Difficulty: number of leading zero hex characters a sealed block's
//     hash must have.
//   - StrictRecovery: when true, an unparsable ledger checkpoint is a fatal
//     error instead of a silent fallback to a fresh genesis-only ledger.
type Config struct {
	StorageRoot    string
	Difficulty     int
	StrictRecovery bool
}

// LoadDefaults populates Config with development defaults: local ./storage
// root, difficulty 2, best-effort checkpoint recovery.
func (c *Config) LoadDefaults() {
	c.StorageRoot = "storage"
	c.Difficulty = 2
	c.StrictRecovery = false
}

// LoadConfig builds a Config by applying defaults and then overlaying
// values from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)
	return cfg
}
