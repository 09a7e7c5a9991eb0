package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ochairo/patchverify/internal/domain/entities"
)

func newProbesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probes",
		Short: "List the bug classes that have behavioral probes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := a.loadCatalog()
			if err != nil {
				return err
			}
			if asJSON {
				rows := make([]probeRow, 0, catalog.Len())
				for _, class := range catalog.BugClasses() {
					spec, _ := catalog.Lookup(class)
					rows = append(rows, newProbeRow(spec))
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			renderCatalog(cmd.OutOrStdout(), catalog)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// probeRow is the JSON form of one catalog entry
type probeRow struct {
	BugClass    entities.BugClass `json:"bug_class"`
	Description string            `json:"description"`
	EntryPoints []string          `json:"entry_points"`
	Ecosystems  []string          `json:"ecosystems"`
}

func newProbeRow(spec entities.ProbeSpec) probeRow {
	row := probeRow{BugClass: spec.BugClass, Description: spec.Description, EntryPoints: spec.EntryPoints}
	for _, eco := range []entities.Ecosystem{entities.EcosystemPyPI, entities.EcosystemNPM} {
		if spec.Script(eco) != "" {
			row.Ecosystems = append(row.Ecosystems, string(eco))
		}
	}
	return row
}

func newProbeCmd(a *app) *cobra.Command {
	var (
		ecosystem string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "probe <package> <version> <bug-class>",
		Short: "Run one behavioral probe against one installed release",
		Example: `  patchverify probe pyyaml 5.3 input_validation
  patchverify probe minimist 1.2.5 denial_of_service --ecosystem npm`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			eco, err := parseEcosystemFlag(ecosystem)
			if err != nil {
				return err
			}
			catalog, err := a.loadCatalog()
			if err != nil {
				return err
			}
			class := entities.BugClass(strings.ToLower(args[2]))
			if _, ok := catalog.Lookup(class); !ok {
				return fmt.Errorf("no probe for bug class %q (see patchverify probes)", args[2])
			}

			evidence, err := a.evidenceGateway(catalog)
			if err != nil {
				return err
			}
			if eco == entities.EcosystemNone {
				if eco, err = evidence.DetectEcosystem(ctx, args[0]); err != nil {
					return err
				}
				if eco == entities.EcosystemNone {
					return fmt.Errorf("could not detect the ecosystem of %s; pass --ecosystem", args[0])
				}
			}

			result := evidence.RunProbe(ctx, entities.ProbeRequest{
				Package:   args[0],
				Version:   args[1],
				BugClass:  class,
				Ecosystem: eco,
			})
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			renderProbeResult(cmd.OutOrStdout(), args[0], args[1], class, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&ecosystem, "ecosystem", "", "Skip detection: pypi or npm")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
