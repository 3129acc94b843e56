package main

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/theduckverse/refundhunter-backend/internal/app"
	"github.com/theduckverse/refundhunter-backend/internal/common"
)

// version is set at build time via -ldflags.
var version = "dev"

type globalOptions struct {
	envFile          string
	rulesFile        string
	persist          bool
	inmem            bool
	unitValue        string
	maxRows          int
	maxClaims        int
	assumeSingleUnit bool
	classifier       bool
	noMessages       bool
	logLevel         string
}

func newRootCmd() *cobra.Command {
	var opts globalOptions
	root := &cobra.Command{
		Use:   "reimburse",
		Short: "Audit inventory adjustment exports for reimbursable losses",
		Long: "reimburse reads seller inventory adjustment exports (CSV, TSV, text or XLSX),\n" +
			"flags lost and damaged units and prints validated reimbursement claims.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	f.StringVar(&opts.rulesFile, "rules", "", "YAML rules file with header aliases and keywords")
	f.BoolVar(&opts.persist, "persist", false, "record runs in the database (DB_URL) and dedupe by content")
	f.BoolVar(&opts.inmem, "inmem", false, "use an in-memory SQLite run store")
	f.StringVar(&opts.unitValue, "unit-value", "", "value of one unit when a row has no unit cost")
	f.IntVar(&opts.maxRows, "max-rows", 0, "maximum rows read per input")
	f.IntVar(&opts.maxClaims, "max-claims", 0, "maximum claims per audit")
	f.BoolVar(&opts.assumeSingleUnit, "assume-single-unit", false, "count flagged rows without a quantity as one unit")
	f.BoolVar(&opts.classifier, "classifier", false, "route candidates through the external classifier")
	f.BoolVar(&opts.noMessages, "no-messages", false, "omit drafted support messages")
	f.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(
		newAuditCmd(&opts),
		newBatchCmd(&opts),
		newValidateCmd(&opts),
		newWatchCmd(&opts),
		newRunsCmd(&opts),
		newRulesCmd(&opts),
	)
	return root
}

// newLogger writes JSON logs to stderr so stdout carries only results.
func newLogger(cmd *cobra.Command, opts *globalOptions) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig reads the environment, then applies flags that were set explicitly.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*common.Config, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewAppError(common.CodeConfig, "load "+opts.envFile, err)
		}
	}
	cfg := common.LoadConfig()

	flags := cmd.Flags()
	if flags.Changed("rules") {
		cfg.Audit.RulesFile = opts.rulesFile
	}
	if flags.Changed("unit-value") {
		cfg.Audit.UnitValue = opts.unitValue
	}
	if flags.Changed("max-rows") {
		cfg.Audit.MaxRows = opts.maxRows
	}
	if flags.Changed("max-claims") {
		cfg.Audit.MaxClaims = opts.maxClaims
	}
	if flags.Changed("assume-single-unit") {
		cfg.Audit.AssumeSingleUnit = opts.assumeSingleUnit
	}
	if flags.Changed("classifier") {
		cfg.Audit.UseClassifier = opts.classifier
	}
	if opts.noMessages {
		cfg.Audit.IncludeMessages = false
	}
	if opts.inmem {
		cfg.Database.InMemory = true
	}
	return cfg, nil
}

func buildApp(cmd *cobra.Command, opts *globalOptions, persist bool) (*app.App, error) {
	logger := newLogger(cmd, opts)
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	return app.Build(cmd.Context(), cfg, app.Options{Persist: persist || opts.persist || opts.inmem}, logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
