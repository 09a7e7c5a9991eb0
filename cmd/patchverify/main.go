package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ochairo/patchverify/internal/config"
	"github.com/ochairo/patchverify/internal/domain/interfaces"
	"github.com/ochairo/patchverify/internal/slogger"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

// rootOptions are the flags shared by every command
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// app is the state every command builds on after flags are parsed
type app struct {
	cfg    *config.Config
	slog   *slog.Logger
	logger interfaces.Logger
}

// exitError carries a process exit code up to main
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.msg != "" {
				fmt.Fprintln(os.Stderr, ee.msg)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	state := &app{}

	root := &cobra.Command{
		Use:   "patchverify",
		Short: "Verify whether a software update actually fixed what it promised",
		Long: `patchverify compares two releases of a PyPI or npm package and checks each
promised fix (CVE or bug fix from the release notes) against version-range data,
the file diff between the releases and a behavioral probe.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.init(opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.patchverify/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(
		newScanCmd(state),
		newHistoryCmd(state),
		newShowCmd(state),
		newProbesCmd(state),
		newProbeCmd(state),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(opts *rootOptions) error {
	a.slog = slogger.Init(slogger.Options{Level: opts.logLevel, Format: opts.logFormat})
	a.logger = interfaces.NewSlogLogger(a.slog)

	cfg, err := config.NewLoader(a.slog).Load(opts.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}
