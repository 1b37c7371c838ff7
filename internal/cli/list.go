package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bindery/internal/predicate"
	"github.com/roach88/bindery/internal/record"
)

// recordView is the JSON shape of one listed record.
type recordView struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Seq      int64          `json:"seq"`
	Fields   map[string]any `json:"fields"`
	OwnerID  string         `json:"owner_id,omitempty"`
	Position *int64         `json:"position,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		queryPath string
		sortSpecs []string
	)

	cmd := &cobra.Command{
		Use:   "list [kind]",
		Short: "List records of a kind, filtered and sorted",
		Long: `List records. Either give a kind (optionally with repeated
--sort field:dir flags) or a --query YAML file containing a full
query definition (kind, where, sort). Results are deterministic:
equal sort keys are broken by record id.

Example query file:

  kind: User
  where:
    and:
      - eq: {field: city, value: London}
      - contains: {field: name, value: R}
  sort:
    - {field: name, dir: asc}`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			s, err := openStore(rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			var (
				kind  string
				where predicate.Predicate
				order predicate.SortOrder
			)
			switch {
			case queryPath != "":
				def, err := predicate.ParseFile(s.Schema(), queryPath)
				if err != nil {
					return formatter.Fail(err)
				}
				if len(args) == 1 && args[0] != def.Kind {
					return formatter.Fail(fmt.Errorf("kind %q conflicts with query kind %q", args[0], def.Kind))
				}
				kind, where, order = def.Kind, def.Where, def.Sort
			case len(args) == 1:
				kind = args[0]
				order, err = parseSortSpecs(sortSpecs)
				if err != nil {
					return formatter.Fail(err)
				}
			default:
				return formatter.Fail(fmt.Errorf("a kind argument or --query file is required"))
			}

			results, err := s.Fetch(cmd.Context(), kind, where, order)
			if err != nil {
				return formatter.Fail(err)
			}

			formatter.VerboseLog("%d record(s) of kind %s", len(results), kind)
			if formatter.Format == "json" {
				views := make([]recordView, len(results))
				for i, rec := range results {
					views[i] = viewOf(rec)
				}
				return formatter.Success(views)
			}
			for _, rec := range results {
				fmt.Fprintln(formatter.Writer, formatRecord(rec))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&queryPath, "query", "", "YAML query definition file")
	cmd.Flags().StringArrayVar(&sortSpecs, "sort", nil, "sort key as field:asc or field:desc (repeatable)")
	return cmd
}

// parseSortSpecs converts --sort field:dir flags into a sort order.
func parseSortSpecs(specs []string) (predicate.SortOrder, error) {
	var order predicate.SortOrder
	for _, spec := range specs {
		field, dir, ok := strings.Cut(spec, ":")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid sort %q: expected field:asc or field:desc", spec)
		}
		var direction predicate.Direction
		switch dir {
		case "asc":
			direction = predicate.Asc
		case "desc":
			direction = predicate.Desc
		default:
			return nil, fmt.Errorf("invalid sort direction %q in %q", dir, spec)
		}
		order = append(order, predicate.SortKey{Field: field, Direction: direction})
	}
	return order, nil
}

func viewOf(rec record.Record) recordView {
	fields := make(map[string]any, len(rec.Fields))
	for name, v := range rec.Fields {
		fields[name] = plainValue(v)
	}
	view := recordView{
		ID:      rec.ID,
		Kind:    rec.Kind,
		Seq:     rec.Seq,
		Fields:  fields,
		OwnerID: rec.OwnerID,
	}
	if rec.OwnerID != "" {
		pos := rec.Position
		view.Position = &pos
	}
	return view
}

// plainValue converts a record value to a plain JSON-encodable value.
func plainValue(v record.Value) any {
	switch val := v.(type) {
	case record.String:
		return string(val)
	case record.Int:
		return int64(val)
	case record.Bool:
		return bool(val)
	case record.Time:
		return int64(val)
	case record.Null:
		return nil
	}
	return nil
}

// formatRecord renders one record as a text line with fields in name
// order.
func formatRecord(rec record.Record) string {
	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, plainValue(rec.Fields[name]))
	}
	line := fmt.Sprintf("%s\t%s\t%s", rec.ID, rec.Kind, strings.Join(parts, " "))
	if rec.OwnerID != "" {
		line += fmt.Sprintf("\towner=%s[%d]", rec.OwnerID, rec.Position)
	}
	return line
}
