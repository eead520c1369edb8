package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/compose"
	"github.com/ludovico-lanni/sql-4-exp-analysis/internal/testutil"
)

// writeFixtureQueries writes the fixture fragments as query files.
func writeFixtureQueries(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"ass.sql":      testutil.AssignmentsFragment,
		"ep.sql":       testutil.EntryPointFragment,
		"orders.sql":   testutil.OrdersFragment,
		"sessions.sql": testutil.SessionsFragment,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const yamlDefinition = `
assignments:
  query_file: ass.sql
  mapping:
    randomisation_unit_id: customer_id
    variant_column: variant
    date_column: date_ass
entry_point:
  query_file: ep.sql
  mapping:
    randomisation_unit_id: customer_id
    date_column: date_ep
facts:
  - query_file: orders.sql
    mapping:
      randomisation_unit_id: customer_id
      date_column: obs_date
      fact_columns: [orders_created, orders_cancelled]
  - query_file: sessions.sql
    mapping:
      randomisation_unit_id: customer_id
      date_column: obs_date
      fact_columns: sessions
`

const cueDefinition = `
#unit: "customer_id"
#observed: "obs_date"

assignments: {
	query_file: "ass.sql"
	mapping: {randomisation_unit_id: #unit, variant_column: "variant", date_column: "date_ass"}
}
entry_point: {
	query_file: "ep.sql"
	mapping: {randomisation_unit_id: #unit, date_column: "date_ep"}
}
facts: [{
	query_file: "orders.sql"
	mapping: {randomisation_unit_id: #unit, date_column: #observed, fact_columns: ["orders_created", "orders_cancelled"]}
}, {
	query_file: "sessions.sql"
	mapping: {randomisation_unit_id: #unit, date_column: #observed, fact_columns: "sessions"}
}]
`

func TestLoadInput_YAMLMatchesFixture(t *testing.T) {
	dir := t.TempDir()
	writeFixtureQueries(t, dir)
	path := writeFile(t, dir, "experiment.yaml", yamlDefinition)

	in, err := LoadInput(path)
	require.NoError(t, err)

	assert.Equal(t, testutil.ExampleInput(testutil.OrdersFact(), testutil.SessionsFact()), in)
}

func TestLoadInput_CUEMatchesFixture(t *testing.T) {
	dir := t.TempDir()
	writeFixtureQueries(t, dir)
	path := writeFile(t, dir, "experiment.cue", cueDefinition)

	in, err := LoadInput(path)
	require.NoError(t, err)

	assert.Equal(t, testutil.ExampleInput(testutil.OrdersFact(), testutil.SessionsFact()), in)
}

func TestLoadInput_YAMLAndCUEComposeIdentically(t *testing.T) {
	dir := t.TempDir()
	writeFixtureQueries(t, dir)

	fromYAML, err := LoadInput(writeFile(t, dir, "a.yml", yamlDefinition))
	require.NoError(t, err)
	fromCUE, err := LoadInput(writeFile(t, dir, "a.cue", cueDefinition))
	require.NoError(t, err)

	a, err := compose.Compose(fromYAML)
	require.NoError(t, err)
	b, err := compose.Compose(fromCUE)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParseYAML_InlineQueryAndCommaColumns(t *testing.T) {
	def, err := ParseYAML("inline.yaml", []byte(`
assignments:
  query: "with ass as (select 1)\nselect * from ass"
  mapping: {randomisation_unit_id: id, variant_column: v, date_column: d}
entry_point:
  query: "with ep as (select 1)\nselect * from ep"
  mapping: {randomisation_unit_id: id, date_column: d}
facts:
  - query: "with f as (select 1)\nselect * from f"
    mapping:
      randomisation_unit_id: " id "
      date_column: d
      fact_columns: "a, b ,c"
`))
	require.NoError(t, err)

	in, err := def.Input("")
	require.NoError(t, err)

	require.Len(t, in.Facts, 1)
	assert.Equal(t, []string{"a", "b", "c"}, in.Facts[0].Mapping.FactColumns)
	assert.Equal(t, "id", in.Facts[0].Mapping.RandomisationUnitID)
	assert.Equal(t, "with ass as (select 1)\nselect * from ass", in.Assignments)
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML("typo.yaml", []byte(`
assignments:
  query: "select * from a"
  mapping: {randomisation_unit_id: id, variant_column: v, date_colum: d}
`))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), "date_colum")
}

func TestColumnList_EmptyString(t *testing.T) {
	def, err := ParseYAML("empty.yaml", []byte(`
facts:
  - query: "select * from f"
    mapping: {randomisation_unit_id: id, date_column: d, fact_columns: ""}
`))
	require.NoError(t, err)

	assert.Empty(t, def.Facts[0].Mapping.FactColumns)
}

func TestColumnList_JSON(t *testing.T) {
	var cols ColumnList
	require.NoError(t, cols.UnmarshalJSON([]byte(`"x,y"`)))
	assert.Equal(t, ColumnList{"x", "y"}, cols)

	require.NoError(t, cols.UnmarshalJSON([]byte(`["z"]`)))
	assert.Equal(t, ColumnList{"z"}, cols)

	assert.Error(t, cols.UnmarshalJSON([]byte(`42`)))
}

func TestInput_NFCNormalization(t *testing.T) {
	def := &Definition{
		Assignments: AssignmentsSource{Query: "select * from a"},
		EntryPoint:  EntryPointSource{Query: "select * from e"},
	}
	// "e" followed by a combining acute accent.
	def.Assignments.Mapping.DateColumn = "date_cre\u0301e"

	in, err := def.Input("")
	require.NoError(t, err)
	assert.Equal(t, "date_cr\u00e9e", in.AssignmentsMapping.DateColumn)
}

func TestInput_QuerySourceErrors(t *testing.T) {
	testCases := []struct {
		name    string
		def     Definition
		kind    error
		message string
	}{
		{
			name:    "both query and file",
			def:     Definition{Assignments: AssignmentsSource{Query: "q", QueryFile: "f.sql"}},
			kind:    ErrInvalid,
			message: "assignments: query and query_file are mutually exclusive",
		},
		{
			name:    "neither query nor file",
			def:     Definition{Assignments: AssignmentsSource{Query: "q"}},
			kind:    ErrInvalid,
			message: "entry_point: one of query or query_file is required",
		},
		{
			name: "missing query file",
			def: Definition{
				Assignments: AssignmentsSource{Query: "q"},
				EntryPoint:  EntryPointSource{Query: "q"},
				Facts:       []FactSource{{QueryFile: "missing.sql"}},
			},
			kind:    ErrNotFound,
			message: "facts[0]: reading query file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.def.Input(t.TempDir())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind))
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestInput_UnreadableQueryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "orders.sql"), 0o755))
	def := Definition{
		Assignments: AssignmentsSource{Query: "q"},
		EntryPoint:  EntryPointSource{Query: "q"},
		Facts:       []FactSource{{QueryFile: "orders.sql"}},
	}

	_, err := def.Input(dir)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
	assert.Contains(t, err.Error(), "facts[0]: reading query file")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("unreadable file", func(t *testing.T) {
		path := filepath.Join(dir, "folder.yaml")
		require.NoError(t, os.Mkdir(path, 0o755))

		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnreadable))
		assert.False(t, errors.Is(err, ErrNotFound))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Load(writeFile(t, dir, "def.json", "{}"))
		assert.True(t, errors.Is(err, ErrUnsupportedFormat))
		assert.Contains(t, err.Error(), `".json"`)
	})

	t.Run("cue conflict has position", func(t *testing.T) {
		_, err := Load(writeFile(t, dir, "conflict.cue", "assignments: query: \"a\"\nassignments: query: \"b\"\n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParse))

		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Greater(t, le.Line, 0)
	})

	t.Run("cue non-concrete value", func(t *testing.T) {
		_, err := Load(writeFile(t, dir, "open.cue", "assignments: query: string\n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParse))
	})

	t.Run("cue unknown field", func(t *testing.T) {
		_, err := Load(writeFile(t, dir, "unknown.cue", "experiment: \"x\"\n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParse))
		assert.Contains(t, err.Error(), "experiment")
	})
}
