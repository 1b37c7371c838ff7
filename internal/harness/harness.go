package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bindery/internal/predicate"
	"github.com/roach88/bindery/internal/query"
	"github.com/roach88/bindery/internal/record"
	"github.com/roach88/bindery/internal/schema"
	"github.com/roach88/bindery/internal/store"
)

// Run executes a scenario against a fresh store at dbPath. The store
// is opened and closed inside the run, so the logical clock starts at
// zero and the captured trace is reproducible.
func Run(scenario *Scenario, dbPath string, sch *schema.Schema) (*Result, error) {
	s, err := store.Open(dbPath, sch)
	if err != nil {
		return nil, fmt.Errorf("open scenario store: %w", err)
	}
	defer s.Close()

	ctx := context.Background()
	result := NewResult()
	run := &runner{
		store:  s,
		schema: sch,
		names:  map[string]string{},
		byID:   map[string]string{},
		result: result,
	}

	unsubscribe := s.Subscribe(func(c store.Change) {
		run.result.Trace = append(run.result.Trace, TraceEvent{
			Step:   run.step,
			Op:     string(c.Op),
			Record: run.nameOf(c.RecordID),
			Kind:   c.Kind,
			Field:  c.Field,
			Seq:    c.Seq,
		})
	})
	defer unsubscribe()

	var live *query.Live
	if scenario.Query != nil {
		data, err := yaml.Marshal(scenario.Query)
		if err != nil {
			return nil, fmt.Errorf("marshal query definition: %w", err)
		}
		def, err := predicate.Parse(sch, data)
		if err != nil {
			return nil, fmt.Errorf("scenario query: %w", err)
		}
		live, err = query.NewFromDefinition(ctx, s, def)
		if err != nil {
			return nil, fmt.Errorf("scenario query: %w", err)
		}
		defer live.Close()
	}

	for i, step := range scenario.Steps {
		run.step = i
		err := run.execute(ctx, step)
		switch {
		case step.Expect != nil:
			if err == nil {
				result.AddError("steps[%d]: expected error %s, got success", i, step.Expect.Error)
			} else if code := errorCode(err); code != step.Expect.Error {
				result.AddError("steps[%d]: expected error %s, got %v", i, step.Expect.Error, err)
			}
		case err != nil:
			result.AddError("steps[%d]: %v", i, err)
		}

		if live != nil {
			result.Snapshots = append(result.Snapshots, run.resultNames(live.Results()))
		}
	}

	if live != nil {
		result.Final = run.resultNames(live.Results())
	}

	evaluateAssertions(scenario, result)
	return result, nil
}

// runner holds the symbolic-name bookkeeping for one execution.
type runner struct {
	store  *store.Store
	schema *schema.Schema
	names  map[string]string // symbolic name -> stored id
	byID   map[string]string // stored id -> symbolic name
	result *Result
	step   int
}

func (r *runner) execute(ctx context.Context, step Step) error {
	switch {
	case step.Insert != nil:
		return r.insert(ctx, step.Insert)
	case step.Update != nil:
		id, err := r.resolve(step.Update.Record)
		if err != nil {
			return err
		}
		typ, err := r.fieldType(id, step.Update.Field)
		if err != nil {
			return err
		}
		value, err := convertLiteral(typ, step.Update.Value)
		if err != nil {
			return err
		}
		return r.store.Update(ctx, id, step.Update.Field, value)
	case step.Delete != nil:
		id, err := r.resolve(step.Delete.Record)
		if err != nil {
			return err
		}
		return r.store.Delete(ctx, id)
	case step.Attach != nil:
		ownerID, err := r.resolve(step.Attach.Owner)
		if err != nil {
			return err
		}
		childID, err := r.resolve(step.Attach.Record)
		if err != nil {
			return err
		}
		return r.store.Attach(ctx, ownerID, childID)
	case step.Detach != nil:
		id, err := r.resolve(step.Detach.Record)
		if err != nil {
			return err
		}
		return r.store.Detach(ctx, id)
	}
	return fmt.Errorf("empty step")
}

func (r *runner) insert(ctx context.Context, step *InsertStep) error {
	kind, ok := r.schema.Kind(step.Kind)
	if !ok {
		return fmt.Errorf("unknown kind %q", step.Kind)
	}

	fields := make(map[string]record.Value, len(step.Fields))
	for name, raw := range step.Fields {
		typ, ok := kind.Fields[name]
		if !ok {
			return fmt.Errorf("kind %q has no field %q", step.Kind, name)
		}
		value, err := convertLiteral(typ, raw)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = value
	}

	rec := record.New(step.Kind, fields)
	if step.ID != "" {
		// A forced id may collide with an earlier insert; that is the
		// point of forcing it.
		if id, ok := r.names[step.ID]; ok {
			rec.ID = id
		} else {
			rec.ID = step.ID
		}
	}
	if step.Owner != "" {
		ownerID, err := r.resolve(step.Owner)
		if err != nil {
			return err
		}
		rec.OwnerID = ownerID
	}

	// Register before inserting so a failed insert still resolves in
	// error assertions. The first name to claim an id keeps it, so a
	// duplicate-identity probe cannot relabel the original record.
	r.names[step.As] = rec.ID
	if _, claimed := r.byID[rec.ID]; !claimed {
		r.byID[rec.ID] = step.As
	}

	return r.store.Insert(ctx, rec)
}

func (r *runner) resolve(name string) (string, error) {
	id, ok := r.names[name]
	if !ok {
		return "", fmt.Errorf("step references unknown record %q", name)
	}
	return id, nil
}

func (r *runner) nameOf(id string) string {
	if name, ok := r.byID[id]; ok {
		return name
	}
	return id
}

func (r *runner) resultNames(results []record.Record) []string {
	names := make([]string, len(results))
	for i, rec := range results {
		names[i] = r.nameOf(rec.ID)
	}
	return names
}

func (r *runner) fieldType(id, field string) (record.Type, error) {
	rec, err := r.store.Get(context.Background(), id)
	if err != nil {
		return "", err
	}
	return r.schema.FieldType(rec.Kind, field)
}

// convertLiteral turns a YAML scalar into a Value of the declared
// type. Time literals accept unix seconds or RFC 3339 text.
func convertLiteral(typ record.Type, raw any) (record.Value, error) {
	if raw == nil {
		return record.Null{}, nil
	}
	switch typ {
	case record.TypeText:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected text literal, got %T", raw)
		}
		return record.String(s), nil
	case record.TypeInt:
		n, ok := asInt64(raw)
		if !ok {
			return nil, fmt.Errorf("expected integer literal, got %T", raw)
		}
		return record.Int(n), nil
	case record.TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean literal, got %T", raw)
		}
		return record.Bool(b), nil
	case record.TypeTime:
		if n, ok := asInt64(raw); ok {
			return record.Time(n), nil
		}
		if s, ok := raw.(string); ok {
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("invalid time literal %q: %w", s, err)
			}
			return record.Time(ts.Unix()), nil
		}
		return nil, fmt.Errorf("expected unix seconds or RFC 3339 text, got %T", raw)
	}
	return nil, fmt.Errorf("unsupported field type %q", typ)
}

func asInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// errorCode extracts the structured store error code, or the raw
// error text for plain errors.
func errorCode(err error) string {
	var se *store.StoreError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	if predicate.IsInvalid(err) {
		return predicate.CodeInvalidPredicate
	}
	return err.Error()
}
