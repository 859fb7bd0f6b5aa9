// moodcam - voice controlled webcam that reads facial expressions aloud.
// Say "start camera" or "stop camera"; the dashboard shows the annotated
// video on http://localhost:8080.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-moodcam/internal/config"
	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "moodcam: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Config file (default: "+config.DefaultPath+" if present)")
	envFile := flag.String("env", ".env", "Dotenv file with API keys")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Log every processed frame")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	addr := flag.String("addr", "", "Dashboard listen address")
	device := flag.String("camera", "", "Camera index or stream URL")
	noWeb := flag.Bool("no-web", false, "Disable the dashboard")
	noMic := flag.Bool("no-mic", false, "Disable the microphone; use browser transcripts only")
	preview := flag.Bool("preview", false, "Show the annotated feed in a local window")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if *debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if *debugFrames {
		cfg.DebugFrames = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *addr != "" {
		cfg.Web.Addr = *addr
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *noWeb {
		cfg.Web.Enabled = false
	}
	if *noMic {
		cfg.Voice.Microphone = false
	}
	if *preview {
		cfg.Preview = true
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Web.Enabled {
		logger.Info("dashboard", "url", "http://localhost"+cfg.Web.Addr)
	}
	return a.Run(ctx)
}
