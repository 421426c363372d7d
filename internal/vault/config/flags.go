package config

import (
	"flag"
	"os"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-s string   storage root directory
//	-d int      sealing difficulty (leading zero hex characters)
//	-strict     fail on an unparsable ledger checkpoint instead of
//	            falling back to a fresh ledger
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("evault", flag.ContinueOnError)

	fs.StringVar(&config.StorageRoot, "s", config.StorageRoot, "storage root directory")
	fs.IntVar(&config.Difficulty, "d", config.Difficulty, "block sealing difficulty")
	fs.BoolVar(&config.StrictRecovery, "strict", config.StrictRecovery, "fail fast on a corrupt ledger checkpoint")

	if err := fs.Parse(os.Args[1:]); err != nil {
		panic(err)
	}
}
