package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"paydash/internal/app"
	"paydash/internal/config"
	"paydash/internal/infrastructure"
	"paydash/internal/report"
)

type rootOptions struct {
	configFile string
	envFile    string
	sources    []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "paydash",
		Short:         "Payment ledger dashboard",
		Long:          "paydash loads the payment ledger from Google Sheets, a CSV export, a local workbook or built-in demo data, normalizes it and serves summaries over HTTP.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is not an error.
			if err := godotenv.Load(opts.envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to load %s: %w", opts.envFile, err)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file (default: $PAYDASH_CONFIG or paydash.yaml)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	flags.StringSliceVar(&opts.sources, "source", nil, "source order override, e.g. --source file,demo")

	cmd.AddCommand(
		newServeCmd(opts),
		newSummaryCmd(opts),
		newExportCmd(opts),
		newSourcesCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFile(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if len(o.sources) > 0 {
		cfg.Source.Order = o.sources
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// oneShot builds an application for commands that load once and exit. Logs
// go to stderr so stdout carries only the command's output.
func (o *rootOptions) oneShot(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Refresh.Enabled = false
	cfg.Telemetry.MetricsEnabled = false

	logger := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	return app.New(cfg, logger, app.Options{Version: Version})
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and push refreshes over websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger, err := infrastructure.InitializeLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer infrastructure.CloseLogFile()

			application, err := app.New(cfg, logger, app.Options{Version: Version})
			if err != nil {
				logger.Error("Failed to initialize application", slog.String("error", err.Error()))
				return err
			}
			return application.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides PAYDASH_SERVER_PORT)")
	return cmd
}

// filterFlags binds the filter options shared by summary and export.
type filterFlags struct {
	statuses []string
	modes    []string
	minFinal string
	maxFinal string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.statuses, "status", nil, "keep rows with these work statuses")
	cmd.Flags().StringSliceVar(&f.modes, "mode", nil, "keep rows with these payment modes")
	cmd.Flags().StringVar(&f.minFinal, "min-final", "", "lower bound on final amount")
	cmd.Flags().StringVar(&f.maxFinal, "max-final", "", "upper bound on final amount")
}

func (f *filterFlags) filter() (report.Filter, error) {
	filter := report.Filter{Statuses: f.statuses, Modes: f.modes}
	if f.minFinal != "" {
		d, err := decimal.NewFromString(f.minFinal)
		if err != nil {
			return report.Filter{}, fmt.Errorf("invalid --min-final: %w", err)
		}
		filter.MinFinal = &d
	}
	if f.maxFinal != "" {
		d, err := decimal.NewFromString(f.maxFinal)
		if err != nil {
			return report.Filter{}, fmt.Errorf("invalid --max-final: %w", err)
		}
		filter.MaxFinal = &d
	}
	if err := filter.Validate(); err != nil {
		return report.Filter{}, err
	}
	return filter, nil
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print ledger totals and breakdowns as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.filter()
			if err != nil {
				return err
			}
			application, err := opts.oneShot(cmd)
			if err != nil {
				return err
			}
			defer application.Close(context.WithoutCancel(cmd.Context()))

			summary, err := application.LedgerService.Summary(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	ff.register(cmd)
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		ff  filterFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered ledger as CSV",
		Long:  "Write the filtered ledger as CSV to stdout, or to --out. Relative paths are resolved against the configured export directory.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.filter()
			if err != nil {
				return err
			}
			application, err := opts.oneShot(cmd)
			if err != nil {
				return err
			}
			defer application.Close(context.WithoutCancel(cmd.Context()))

			if out == "" || out == "-" {
				return application.LedgerService.Export(cmd.Context(), cmd.OutOrStdout(), filter)
			}

			path, err := application.LedgerService.ExportFile(cmd.Context(), out, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "wrote", path)
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Try each configured source once and report the outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.oneShot(cmd)
			if err != nil {
				return err
			}
			defer application.Close(context.WithoutCancel(cmd.Context()))

			attempts := application.LedgerService.Probe(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), map[string]interface{}{"attempts": attempts}); err != nil {
				return err
			}
			for _, a := range attempts {
				if a.OK() {
					return nil
				}
			}
			return fmt.Errorf("no source produced a table")
		},
	}
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
