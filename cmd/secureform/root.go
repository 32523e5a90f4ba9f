package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-secureform/pkg/config"
)

// app carries state shared by every subcommand.
type app struct {
	out        io.Writer
	errOut     io.Writer
	configPath string
	logLevel   string
	level      zap.AtomicLevel
	logger     *zap.Logger
	settings   config.App
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{
		out:    out,
		errOut: errOut,
		level:  zap.NewAtomicLevelAt(zapcore.InfoLevel),
		logger: zap.NewNop(),
	}

	root := &cobra.Command{
		Use:   "secureform",
		Short: "Sanitize, validate and rate limit untrusted form input",
		Long: `secureform runs untrusted text through the input pipeline:
sanitization, per-field validation and per-action rate limiting.

Form definitions are JSON or YAML files; application settings come from
--config and SECUREFORM_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "application config file (YAML, JSON or TOML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newSanitizeCmd(a),
		newValidateCmd(a),
		newPromptCmd(a),
		newServeCmd(a),
		newEventsCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	settings, err := config.LoadApp(a.configPath)
	if err != nil {
		return err
	}
	a.settings = settings

	level := strings.TrimSpace(a.logLevel)
	if level == "" {
		level = settings.LogLevel
	}
	if err := a.setLevel(level); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = a.level
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger.Named("secureform")
	return nil
}

func (a *app) setLevel(raw string) error {
	if raw == "" {
		return nil
	}
	lvl, err := zapcore.ParseLevel(raw)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	a.level.SetLevel(lvl)
	return nil
}
