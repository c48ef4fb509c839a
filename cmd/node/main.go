package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"Pedigree/internal/keys"
	"Pedigree/internal/logger"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point with error handling.
func run() error {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.InitLevel(level)

	cfg.PrivateKey, err = keys.LoadOrGenerate(cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("load key:\n%w", err)
	}

	node, err := NewNode(cfg)
	if err != nil {
		return fmt.Errorf("create node:\n%w", err)
	}

	printStartupInfo(cfg)

	return node.Run()
}

// printStartupInfo displays node configuration at startup.
func printStartupInfo(cfg *Config) {
	logger.Info("starting Pedigree node",
		"account", keys.AccountOf(cfg.PrivateKey).String(),
		"http", cfg.HTTPAddress,
		"data", cfg.DataPath,
		"block_time", cfg.BlockTime,
		"breed_policy", cfg.Params.BreedPolicy.String(),
		"oracle", cfg.OracleURL != "",
	)
}
