// File path: internal/cli/root.go
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nicodishanthj/planbuilder/internal/data/orchestrator"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Driver     string
	SQLitePath string
	MemoryPath string
	Collection string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the planctl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "planctl",
		Short: "Manage project plans",
		Long:  "Inspect spreadsheets and manage stored project plans without going through the HTTP API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver (sqlite|mongo|memory); defaults to PLANS_STORE_DRIVER")
	cmd.PersistentFlags().StringVar(&opts.SQLitePath, "sqlite", "", "SQLite database path; defaults to SQLITE_PATH")
	cmd.PersistentFlags().StringVar(&opts.MemoryPath, "memory", "", "JSON-lines store directory; defaults to PLANS_MEMORY_PATH")
	cmd.PersistentFlags().StringVar(&opts.Collection, "collection", "", "collection name; defaults to PLANS_COLLECTION")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))

	return cmd
}

// openStore builds the orchestrator from the environment overlaid with the
// global flags.
func openStore(ctx context.Context, opts *RootOptions) (*orchestrator.Orchestrator, error) {
	cfg, err := orchestrator.LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(opts.Driver); trimmed != "" {
		cfg.Driver = trimmed
	}
	if trimmed := strings.TrimSpace(opts.SQLitePath); trimmed != "" {
		cfg.SQLite.Path = trimmed
	}
	if trimmed := strings.TrimSpace(opts.MemoryPath); trimmed != "" {
		cfg.MemoryPath = trimmed
	}
	if trimmed := strings.TrimSpace(opts.Collection); trimmed != "" {
		cfg.Collection = trimmed
	}
	return orchestrator.New(ctx, cfg)
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
