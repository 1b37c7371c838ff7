package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewAttachCommand creates the attach command.
func NewAttachCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <owner-id> <child-id>",
		Short: "Attach a record to an owner's collection",
		Long: `Append a record to the end of an owner's collection. The owner's
kind must declare a relationship owning the child's kind; a record
attached elsewhere must be detached first.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			s, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Attach(cmd.Context(), args[0], args[1]); err != nil {
				return formatter.Fail(err)
			}
			return formatter.Success(fmt.Sprintf("attached %s to %s", args[1], args[0]))
		},
	}
}

// NewDetachCommand creates the detach command.
func NewDetachCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detach <child-id>",
		Short: "Detach a record from its owner",
		Long: `Remove a record from its owner's collection. The record survives
as an orphan; the back-reference is cleared in the same statement.`,
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

			if err := s.Detach(cmd.Context(), args[0]); err != nil {
				return formatter.Fail(err)
			}
			return formatter.Success(fmt.Sprintf("detached %s", args[0]))
		},
	}
}
