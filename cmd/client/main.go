package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"echoline/internal/client"
	"echoline/internal/shared/config"
	"echoline/internal/shared/logger"
	"echoline/internal/shared/types"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	endpoint := flag.String("endpoint", "", "Name or id of an endpoints.json entry to talk to")
	addr := flag.String("addr", "", "Target host:port, overriding config and -endpoint")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "echoline.ini")
	endpointsPath := filepath.Join(*configDir, "endpoints.json")

	cfg := new(types.Config)
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	endpoints, err := config.LoadEndpoints(endpointsPath)
	if err != nil {
		logger.Fatal().Err(err).Msgf("Failed to load endpoints file '%s'", endpointsPath)
	}
	if len(endpoints) > 0 {
		logger.Debug().Int("count", len(endpoints)).Msg("Endpoint address book loaded.")
	}

	target, err := config.ResolveTarget(cfg, endpoints, *endpoint, *addr)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not resolve target address")
	}

	echoClient := client.New(cfg.ClientConf, target)
	if err := echoClient.Run(); err != nil {
		logger.Fatal().Err(err).Msg("Round trip failed")
	}
}
