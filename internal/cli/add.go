package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/bindery/internal/record"
)

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		fieldPairs []string
		ownerID    string
	)

	cmd := &cobra.Command{
		Use:   "add <kind>",
		Short: "Insert a new record",
		Long: `Insert a record of the given kind. Fields are passed as repeated
--field name=value flags and converted to the declared types. With
--owner the record is attached to the owner's collection in the same
transaction.

Example:

  bindery add User --field name=Rhea --field city=London --field join_date=2024-03-01T12:00:00Z`,
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

			kindName := args[0]
			kind, ok := s.Schema().Kind(kindName)
			if !ok {
				return formatter.Fail(fmt.Errorf("unknown kind %q", kindName))
			}

			fields, err := parseFieldPairs(kind, fieldPairs)
			if err != nil {
				return formatter.Fail(err)
			}

			rec := record.New(kindName, fields)
			rec.OwnerID = ownerID
			if err := s.Insert(cmd.Context(), rec); err != nil {
				return formatter.Fail(err)
			}

			formatter.VerboseLog("inserted %s record %s", kindName, rec.ID)
			return formatter.Success(rec.ID)
		},
	}

	cmd.Flags().StringArrayVar(&fieldPairs, "field", nil, "field as name=value (repeatable)")
	cmd.Flags().StringVar(&ownerID, "owner", "", "attach the new record to this owner")
	return cmd
}
