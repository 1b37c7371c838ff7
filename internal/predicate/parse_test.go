package predicate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bindery/internal/record"
	"github.com/roach88/bindery/internal/schema"
)

func parseUser(t *testing.T, src string) (*Definition, error) {
	t.Helper()
	return Parse(schema.MustDefault(), []byte(src))
}

func TestParse_FullDefinition(t *testing.T) {
	def, err := parseUser(t, `
kind: User
where:
  and:
    - eq: {field: city, value: London}
    - contains: {field: name, value: R}
sort:
  - {field: name, dir: asc}
  - {field: join_date, dir: desc}
`)
	require.NoError(t, err)

	assert.Equal(t, "User", def.Kind)

	and, ok := def.Where.(*And)
	require.True(t, ok)
	require.Len(t, and.Predicates, 2)

	eq, ok := and.Predicates[0].(*Equal)
	require.True(t, ok)
	assert.Equal(t, "city", eq.Field)
	assert.Equal(t, record.String("London"), eq.Value)

	contains, ok := and.Predicates[1].(*Contains)
	require.True(t, ok)
	assert.Equal(t, "name", contains.Field)
	assert.Equal(t, "R", contains.Substr)

	require.Len(t, def.Sort, 2)
	assert.Equal(t, SortKey{Field: "name", Direction: Asc}, def.Sort[0])
	assert.Equal(t, SortKey{Field: "join_date", Direction: Desc}, def.Sort[1])
}

func TestParse_NoWhereMeansMatchAll(t *testing.T) {
	def, err := parseUser(t, "kind: User\n")
	require.NoError(t, err)
	assert.Nil(t, def.Where)
	assert.Empty(t, def.Sort)
}

func TestParse_MultipleTopLevelExpressionsRejected(t *testing.T) {
	// A sequence in the body is multiple statements, not one expression.
	_, err := parseUser(t, `
kind: User
where:
  - eq: {field: city, value: London}
  - contains: {field: name, value: R}
`)
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
	assert.Contains(t, err.Error(), "single expression")
}

func TestParse_MultipleOperatorKeysRejected(t *testing.T) {
	// Two operator keys in one mapping is two expressions.
	_, err := parseUser(t, `
kind: User
where:
  eq: {field: city, value: London}
  contains: {field: name, value: R}
`)
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
}

func TestParse_RejectionHappensBeforeEvaluation(t *testing.T) {
	// No store is involved: the failure is purely structural.
	_, err := parseUser(t, `
kind: User
where:
  between: {field: join_date, value: 0}
`)
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
	assert.Contains(t, err.Error(), "unknown operator")
}

func TestParse_UnknownKind(t *testing.T) {
	_, err := parseUser(t, "kind: Ghost\n")
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
}

func TestParse_MissingKind(t *testing.T) {
	_, err := parseUser(t, "sort: [{field: name, dir: asc}]\n")
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
}

func TestParse_NotAndNestedCombinators(t *testing.T) {
	def, err := parseUser(t, `
kind: User
where:
  or:
    - not:
        eq: {field: city, value: Paris}
    - and:
        - ge: {field: join_date, value: "2024-01-01T00:00:00Z"}
        - lt: {field: join_date, value: "2025-01-01T00:00:00Z"}
`)
	require.NoError(t, err)

	or, ok := def.Where.(*Or)
	require.True(t, ok)
	require.Len(t, or.Predicates, 2)

	not, ok := or.Predicates[0].(*Not)
	require.True(t, ok)
	_, ok = not.Predicate.(*Equal)
	assert.True(t, ok)

	and, ok := or.Predicates[1].(*And)
	require.True(t, ok)
	ge, ok := and.Predicates[0].(*Compare)
	require.True(t, ok)
	assert.Equal(t, OpGE, ge.Op)
	assert.Equal(t, record.Time(1704067200), ge.Value)
}

func TestParse_TimeLiteralUnixSeconds(t *testing.T) {
	def, err := parseUser(t, `
kind: User
where:
  ge: {field: join_date, value: 1704067200}
`)
	require.NoError(t, err)

	cmp, ok := def.Where.(*Compare)
	require.True(t, ok)
	assert.Equal(t, record.Time(1704067200), cmp.Value)
}

func TestParse_IntLiteralForJob(t *testing.T) {
	def, err := Parse(schema.MustDefault(), []byte(`
kind: Job
where:
  gt: {field: priority, value: 2}
`))
	require.NoError(t, err)

	cmp, ok := def.Where.(*Compare)
	require.True(t, ok)
	assert.Equal(t, record.Int(2), cmp.Value)
}

func TestParse_BadSortDirection(t *testing.T) {
	_, err := parseUser(t, `
kind: User
sort:
  - {field: name, dir: up}
`)
	require.Error(t, err)
	assert.True(t, IsInvalid(err))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	src := "kind: User\nwhere:\n  eq: {field: city, value: London}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	def, err := ParseFile(schema.MustDefault(), path)
	require.NoError(t, err)
	assert.NotNil(t, def.Where)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(schema.MustDefault(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
