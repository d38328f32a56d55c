package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"echoline/internal/echotest"
	"echoline/internal/shared/config"
	"echoline/internal/shared/logger"
	"echoline/internal/shared/types"
)

const (
	defaultConfigDir  = "configs"
	iniConfigName     = "echoline.ini"
	defaultListenAddr = "127.0.0.1:12345"
)

func main() {
	configDir := flag.String("configdir", defaultConfigDir, "Path to config directory")
	listen := flag.String("listen", defaultListenAddr, "Address to listen on (port 0 picks a free port)")
	mode := flag.String("mode", string(echotest.ModeEcho), "Reply behavior: echo, truncate, partial, double or silent")
	truncateBytes := flag.Int("truncate-bytes", 3, "Reply budget for -mode truncate and -mode partial")
	delay := flag.Duration("delay", 0, "Pause before each reply")
	flag.Parse()

	// 1. Load echoline.ini so the tester logs the same way the client does.
	iniPath := filepath.Join(*configDir, iniConfigName)
	cfg := new(types.Config)
	if err := config.LoadIni(cfg, iniPath); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	switch echotest.Mode(*mode) {
	case echotest.ModeEcho, echotest.ModeTruncate, echotest.ModePartial, echotest.ModeDouble, echotest.ModeSilent:
	default:
		logger.Fatal().Msgf("Unknown -mode %q (want echo, truncate, partial, double or silent)", *mode)
	}

	// 2. Start the echo server with the requested behavior.
	server := echotest.New(echotest.Config{
		Mode:          echotest.Mode(*mode),
		TruncateBytes: *truncateBytes,
		Delay:         *delay,
	})
	addr, err := server.Start(*listen)
	if err != nil {
		logger.Fatal().Err(err).Msg("Echo server failed to start")
	}
	logger.Info().Msgf("Try it with: go run ./cmd/client -addr %s", addr.String())

	// 3. Serve until interrupted.
	waitForSignal()
	server.Close()
}

func waitForSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	fmt.Println()
	logger.Info().Msg("Signal received, shutting down...")
}
