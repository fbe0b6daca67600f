package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinassist/clinassist/internal/config"
	"github.com/clinassist/clinassist/internal/domain/dosage"
	"github.com/clinassist/clinassist/internal/domain/recording"
	"github.com/clinassist/clinassist/internal/domain/reference"
	"github.com/clinassist/clinassist/internal/platform/audio"
	"github.com/clinassist/clinassist/internal/platform/db"
	"github.com/clinassist/clinassist/internal/platform/gateway"
	"github.com/clinassist/clinassist/internal/platform/kv"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "clinassist",
		Short:        "Clinical assistant gateway",
		SilenceUsage: true,
		Version:      version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(dosageCmd())
	rootCmd.AddCommand(transcribeCmd())
	rootCmd.AddCommand(notesCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

// newLogger writes JSON to out, or console output in development.
func newLogger(out io.Writer, cfg *config.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(out).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// app holds the services every command is built from.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	pool  *pgxpool.Pool
	store kv.Store
	files *audio.FileStore

	transcriber gateway.Transcriber
	completer   gateway.Completer

	reference  *reference.Service
	dosage     *dosage.Service
	recordings *recording.Service
}

// loadApp reads and validates config, then wires the stack. Logs go to
// logOut so that stdout stays free for command output.
func loadApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return newApp(ctx, cfg, newLogger(logOut, cfg))
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	client, err := gateway.NewClient(gateway.Config{
		BaseURL:            cfg.OpenAIBaseURL,
		TranscriptionModel: cfg.TranscriptionModel,
		Timeout:            cfg.GatewayTimeout,
		Credential:         cfg.APIKey,
		Logger:             logger.With().Str("component", "gateway").Logger(),
	})
	if err != nil {
		return nil, err
	}
	a.completer = client
	a.transcriber = client
	if cfg.Transcriber == config.TranscriberWhisper {
		local, err := gateway.NewLocalTranscriber(cfg.WhisperModelsDir, "", "")
		if err != nil {
			return nil, fmt.Errorf("on-device transcription: %w", err)
		}
		a.transcriber = local
	}

	if cfg.StoreBackend == config.BackendPostgres {
		a.pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
	}
	a.store, err = kv.Open(ctx, kv.Options{Backend: cfg.StoreBackend, Path: cfg.StorePath, Pool: a.pool})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	a.files, err = audio.NewFileStore(cfg.AudioDir)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.reference = reference.NewService(a.completer, reference.Options{
		Model:       cfg.ClinicalModel,
		Temperature: cfg.Temperature,
	}, logger)
	a.dosage = dosage.NewService(a.completer, dosage.Options{
		Model:       cfg.DosageModel,
		Temperature: cfg.Temperature,
	}, logger)
	a.recordings = recording.NewService(
		recording.NewStore(a.store, logger),
		a.transcriber,
		a.completer,
		recording.Options{ReformatModel: cfg.ReformatModel, Temperature: cfg.Temperature},
		logger,
	)
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing store")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
