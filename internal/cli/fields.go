package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/bindery/internal/record"
	"github.com/roach88/bindery/internal/schema"
)

// parseFieldPairs converts repeated --field name=value flags into
// typed values per the kind's declared fields.
func parseFieldPairs(kind schema.Kind, pairs []string) (map[string]record.Value, error) {
	fields := make(map[string]record.Value, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q: expected name=value", pair)
		}
		typ, declared := kind.Fields[name]
		if !declared {
			return nil, fmt.Errorf("kind %q has no field %q", kind.Name, name)
		}
		value, err := parseFieldValue(typ, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = value
	}
	return fields, nil
}

// parseFieldValue converts a flag string into a Value of the declared
// type. Time accepts unix seconds or RFC 3339 text.
func parseFieldValue(typ record.Type, raw string) (record.Value, error) {
	switch typ {
	case record.TypeText:
		return record.String(raw), nil
	case record.TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", raw)
		}
		return record.Int(n), nil
	case record.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", raw)
		}
		return record.Bool(b), nil
	case record.TypeTime:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return record.Time(n), nil
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("expected unix seconds or RFC 3339 time, got %q", raw)
		}
		return record.Time(ts.Unix()), nil
	}
	return nil, fmt.Errorf("unsupported field type %q", typ)
}
