package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRmCommand creates the rm command.
func NewRmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a record",
		Long: `Delete a record. Children owned through cascade relationships are
deleted first, in position order, in the same transaction; children of
non-cascade relationships are orphaned.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			s, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return formatter.Fail(err)
			}
			return formatter.Success(fmt.Sprintf("deleted %s", args[0]))
		},
	}
}
