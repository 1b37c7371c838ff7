package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <field> <value>",
		Short: "Update one field of a record",
		Long: `Write one field through to the store. The value is converted to
the field's declared type; the change is persisted before the command
returns.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			s, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			id, field, raw := args[0], args[1], args[2]
			rec, err := s.Get(cmd.Context(), id)
			if err != nil {
				return formatter.Fail(err)
			}
			typ, err := s.Schema().FieldType(rec.Kind, field)
			if err != nil {
				return formatter.Fail(err)
			}
			value, err := parseFieldValue(typ, raw)
			if err != nil {
				return formatter.Fail(err)
			}

			if err := s.Update(cmd.Context(), id, field, value); err != nil {
				return formatter.Fail(err)
			}
			return formatter.Success(fmt.Sprintf("updated %s.%s", id, field))
		},
	}
}
