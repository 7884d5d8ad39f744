package main

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/cmd/plantshare/opts"
	"github.com/walteh/plantshare/pkg/config"
	"github.com/walteh/plantshare/pkg/host"
	plog "github.com/walteh/plantshare/pkg/log"
	"github.com/walteh/plantshare/pkg/remote"
	"github.com/walteh/plantshare/pkg/session"
)

var (
	// Flags
	configFile  string
	projectPath string
	debug       bool
)

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", ".plantshare.hcl", "config file path")
	cmd.PersistentFlags().StringVarP(&projectPath, "project", "p", "", "local Plant project folder")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog based on flags
func setupLogging() zerolog.Logger {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: color.NoColor}).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	log.Logger = logger
	return logger
}

// loadConfig reads the config file, then the environment, then flags
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(ctx, configFile)
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, errors.Errorf("applying environment: %w", err)
	}
	if projectPath != "" {
		cfg.ProjectPath = projectPath
		if err := cfg.Validate(); err != nil {
			return nil, errors.Errorf("validating config: %w", err)
		}
	}
	return cfg, nil
}

// loadRootOpts fills ro with initialized dependencies
func loadRootOpts(ctx context.Context, ro *opts.RootOpts) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	sessions, err := session.New(cfg.Session)
	if err != nil {
		return errors.Errorf("creating session store: %w", err)
	}

	client, err := remote.New(ctx, cfg.Backend, remote.Options{
		Config:   cfg,
		Sessions: sessions,
		Prompter: remote.TerminalPrompter{},
	})
	if err != nil {
		return errors.Errorf("creating remote client: %w", err)
	}

	// the spinner only makes sense on a terminal
	var spinner io.Writer
	if !color.NoColor {
		spinner = os.Stderr
	}

	h, err := host.New(host.Options{
		Config:  cfg,
		Client:  client,
		Spinner: spinner,
	})
	if err != nil {
		return errors.Errorf("creating host: %w", err)
	}

	ro.Config = cfg
	ro.Sessions = sessions
	ro.Host = h
	ro.Console = plog.New(os.Stdout, *zerolog.Ctx(ctx))
	ro.Debug = debug
	zerolog.Ctx(ctx).Debug().Str("config", cfg.String()).Msg("loaded config")
	return nil
}
