package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create and initialize a store database",
		Long: `Create the store database at --db, apply the schema, and run
pending migrations. Initializing an existing store is a no-op.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			s, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			formatter.VerboseLog("store initialized at %s (seq=%d)", rootOpts.DBPath, s.Seq())
			return formatter.Success(fmt.Sprintf("initialized %s", rootOpts.DBPath))
		},
	}
}
