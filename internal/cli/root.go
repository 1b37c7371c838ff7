package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath     string
	SchemaPath string // optional CUE schema file; empty means built-in
	Language   string // BCP 47 tag for text collation and matching
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the bindery CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bindery",
		Short: "Bindery - an observable, query-able record store",
		Long:  "Bindery stores typed records with owned relationships and keeps\nlive queries current as the store changes.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.DBPath == "" {
				return fmt.Errorf("--db is required")
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "bindery.db", "path to the store database")
	cmd.PersistentFlags().StringVar(&opts.SchemaPath, "schema", "", "CUE schema file (default: built-in User/Job schema)")
	cmd.PersistentFlags().StringVar(&opts.Language, "lang", "en", "language tag for text ordering and matching")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewRmCommand(opts))
	cmd.AddCommand(NewAttachCommand(opts))
	cmd.AddCommand(NewDetachCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
