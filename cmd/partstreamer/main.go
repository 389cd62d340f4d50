package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
)

type cmdGlobal struct {
	flagLogLevel string
}

func (c *cmdGlobal) setupLogging(envLevel slog.Level) error {
	level := envLevel
	if c.flagLogLevel != "" {
		if err := level.UnmarshalText([]byte(c.flagLogLevel)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", c.flagLogLevel, err)
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	// Package loggers were derived before, they go through the log package
	slog.SetLogLoggerLevel(level)
	return nil
}

// defaultLogLevel is LOGLEVEL for commands not loading the whole config.
func defaultLogLevel() slog.Level {
	var config LoggingConfig
	if err := envconfig.Process(context.Background(), &config); err != nil {
		return slog.LevelInfo
	}
	return config.Level
}

func main() {
	globalCmd := cmdGlobal{}

	app := &cobra.Command{}
	app.Use = "partstreamer"
	app.Short = "Stream split files as if they were whole"
	app.Long = `Presents files split into parts (movie.mkv.001, movie.mkv.002, ...) as one seekable file,
without joining them on disk.`
	app.SilenceUsage = true
	app.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}
	app.PersistentFlags().StringVar(&globalCmd.flagLogLevel, "log-level", "", "Logging level, one of {DEBUG, INFO, WARN, ERROR}; overrides LOGLEVEL")

	serveCmd := cmdServe{global: &globalCmd}
	app.AddCommand(serveCmd.Command())

	catCmd := cmdCat{global: &globalCmd}
	app.AddCommand(catCmd.Command())

	lsCmd := cmdLs{global: &globalCmd}
	app.AddCommand(lsCmd.Command())

	if err := app.Execute(); err != nil {
		os.Exit(1)
	}
}
