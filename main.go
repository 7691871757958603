package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kmattern/hearsay/asr"
	"github.com/kmattern/hearsay/batch"
	"github.com/kmattern/hearsay/client"
	"github.com/kmattern/hearsay/config"
	"github.com/kmattern/hearsay/server"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML config file")
	listenAddr := flag.String("listen", "", "Server listen address (host:port)")
	serverURL := flag.String("server", "", "Server websocket URL (client mode)")
	inputPath := flag.String("input", "", "Audio file or directory to transcribe (batch mode)")
	outputDir := flag.String("output", "results", "Output directory for batch results")
	watchMode := flag.Bool("watch", false, "Keep watching the input directory for new files")
	whisperPath := flag.String("whisper", "", "Path to whisper executable")
	whisperModel := flag.String("model", "", "Path to whisper model file")
	certFile := flag.String("cert", "", "Path to TLS certificate file")
	keyFile := flag.String("key", "", "Path to TLS key file")
	insecureMode := flag.Bool("insecure", false, "Skip TLS certificate verification (client mode)")
	listDevices := flag.Bool("list-devices", false, "List available audio input devices")
	deviceID := flag.Int("device", 0, "Audio input device ID to use")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyFlags(cfg, *listenAddr, *whisperPath, *whisperModel, *certFile, *keyFile, *verbose)

	setupLogging(cfg.Logging.Level)

	if *listDevices {
		devices, err := client.ListAudioDevices()
		if err != nil {
			slog.Error("Failed to list audio devices", "error", err)
			os.Exit(1)
		}
		fmt.Println("Available audio input devices:")
		for i, device := range devices {
			fmt.Printf("[%d] %s\n", i, device.Name)
			fmt.Printf("    Max Input Channels: %d\n", device.MaxInputChannels)
			fmt.Printf("    Default Sample Rate: %f\n", device.DefaultSampleRate)
			fmt.Println()
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Debug("Received shutdown signal")
		cancel()
	}()

	switch {
	case *serverURL != "":
		err = runClient(ctx, cfg, *serverURL, *deviceID, *insecureMode, *certFile)
	case *inputPath != "":
		err = runBatch(ctx, cfg, *inputPath, *outputDir, *watchMode)
	default:
		err = runServer(ctx, cfg)
	}
	if err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}

	slog.Debug("Program exiting")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func applyFlags(cfg *config.Config, listen, whisper, model, cert, key string, verbose bool) {
	if listen != "" {
		cfg.Server.ListenAddr = listen
	}
	if whisper != "" {
		cfg.Whisper.Path = whisper
	}
	if model != "" {
		cfg.Whisper.Model = model
	}
	if cert != "" {
		cfg.Server.CertFile = cert
	}
	if key != "" {
		cfg.Server.KeyFile = key
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

func newEngine(cfg *config.Config) (*asr.Engine, error) {
	if cfg.Whisper.Path == "" || cfg.Whisper.Model == "" {
		return nil, fmt.Errorf("whisper executable and model paths are required (use -whisper and -model)")
	}
	rec, err := asr.NewWhisper(cfg.Whisper.Path, cfg.Whisper.Model, cfg.Whisper.TempDir)
	if err != nil {
		return nil, err
	}
	return asr.NewEngine(rec), nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	return server.New(cfg, engine).Start(ctx)
}

func runClient(ctx context.Context, cfg *config.Config, serverURL string, deviceID int, insecure bool, certFile string) error {
	return client.Launch(ctx, client.Options{
		ServerURL:    serverURL,
		DeviceID:     deviceID,
		Insecure:     insecure,
		CertFile:     certFile,
		SampleRate:   cfg.Audio.SampleRate,
		FrameSamples: cfg.Audio.FrameSamples,
	})
}

func runBatch(ctx context.Context, cfg *config.Config, inputPath, outputDir string, watch bool) error {
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	processor, err := batch.NewProcessor(engine, outputDir)
	if err != nil {
		return err
	}

	if _, err := processor.ProcessPath(ctx, inputPath); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	watcher, err := batch.NewWatcher(processor, inputPath, cfg.Batch.Workers)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	return watcher.Run(ctx)
}
