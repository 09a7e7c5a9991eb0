package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/interfaces/repositories"
	"github.com/ochairo/patchverify/internal/external-adapters/sqlite"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 || limit > repositories.MaxHistory {
				return fmt.Errorf("--limit must be between 1 and %d", repositories.MaxHistory)
			}
			history, err := sqlite.NewHistoryRepository(a.cfg.HistoryDB)
			if err != nil {
				return err
			}
			//nolint:errcheck // Defer close on history database
			defer history.Close()

			rows, err := history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			renderHistory(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of scans to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <scan-id>",
		Short: "Show the full record of a past scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := sqlite.NewHistoryRepository(a.cfg.HistoryDB)
			if err != nil {
				return err
			}
			//nolint:errcheck // Defer close on history database
			defer history.Close()

			record, err := history.Get(cmd.Context(), args[0])
			if errors.Is(err, entities.ErrScanNotFound) {
				return fmt.Errorf("no scan with id %s (see patchverify history)", args[0])
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), record)
			}
			renderScanRecord(cmd.OutOrStdout(), record)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
