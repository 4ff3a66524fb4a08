package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectResults = `{
  "head": {"vars": ["analysis", "vi", "vd", "categoryVI", "categoryVD", "resultatRelation", "degreR"]},
  "results": {"bindings": [{
    "analysis": {"type": "uri", "value": "http://ia-das.org/data#Analysis_12"},
    "vi": {"type": "literal", "value": "Anxiety"},
    "vd": {"type": "literal", "value": "Binge eating"},
    "categoryVI": {"type": "literal", "value": "Intrapersonal factor related to DEAB"},
    "categoryVD": {"type": "literal", "value": "DEAB"},
    "resultatRelation": {"type": "literal", "value": "+"},
    "degreR": {"type": "literal", "value": "0.32", "datatype": "http://www.w3.org/2001/XMLSchema#decimal"}
  }]}
}`

const hierarchyResults = `{
  "head": {"vars": ["relation", "concept", "conceptLabel", "related", "relatedLabel", "level"]},
  "results": {"bindings": [
    {"relation": {"type": "literal", "value": "parent"},
     "concept": {"type": "uri", "value": "http://ia-das.org/onto#Anxiety"},
     "conceptLabel": {"type": "literal", "value": "Anxiety"},
     "related": {"type": "uri", "value": "http://ia-das.org/onto#EmotionalFactor"},
     "relatedLabel": {"type": "literal", "value": "Emotional factor"},
     "level": {"type": "literal", "value": "1", "datatype": "http://www.w3.org/2001/XMLSchema#integer"}}
  ]}
}`

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestSelect_Flags(t *testing.T) {
	out, _, err := execute(t, "", "select", "--sport", "Football", "--significant", "--limit", "20")
	require.NoError(t, err)

	assert.Contains(t, out, "SELECT")
	assert.Contains(t, out, `LCASE("Football")`)
	assert.Contains(t, out, "LIMIT 20")
}

func TestSelect_SportTypeAndVariableType(t *testing.T) {
	path := writeFile(t, "filter.yaml", "variableType: VI\n")

	out, _, err := execute(t, "", "select", "--filter", path, "--sport-type", "Collective")
	require.NoError(t, err)
	assert.Contains(t, out, `FILTER(LCASE(?sportType) = LCASE("Collective"))`)

	bad := writeFile(t, "bad.yaml", "variableType: VX\n")
	_, _, err = execute(t, "", "select", "--filter", bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSelect_FilterFileOverriddenByFlags(t *testing.T) {
	path := writeFile(t, "filter.yaml", "sportName: Tennis\ngender: Female\nlimit: 7\n")

	out, _, err := execute(t, "", "select", "--filter", path, "--sport", "Football")
	require.NoError(t, err)

	assert.Contains(t, out, `LCASE("Football")`)
	assert.NotContains(t, out, "Tennis")
	assert.Contains(t, out, "Female")
	assert.Contains(t, out, "LIMIT 7")
}

func TestSelect_FilterFromStdinJSON(t *testing.T) {
	out, _, err := execute(t, `{"sportName": "Rugby"}`, "--format", "json", "select", "--filter", "-")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, resp.Data.(map[string]any)["query"], `LCASE("Rugby")`)
}

func TestSelect_MissingFilterFile(t *testing.T) {
	_, _, err := execute(t, "", "select", "--filter", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInsert(t *testing.T) {
	path := writeFile(t, "record.yaml", "analysisId: 12\nsportName: Football\ndoi: 10.1000/x\n")

	out, _, err := execute(t, "", "insert", "-r", path)
	require.NoError(t, err)

	assert.Contains(t, out, "INSERT DATA")
	assert.Contains(t, out, "iadas-data:Analysis_12")
	assert.Contains(t, out, `"Football"`)
}

func TestInsert_SingleEntity(t *testing.T) {
	path := writeFile(t, "record.yaml", "analysisId: 12\nsportName: Football\n")

	out, _, err := execute(t, "", "insert", "-r", path, "--entity", "Sport")
	require.NoError(t, err)

	assert.Contains(t, out, "# Sport\n")
	assert.NotContains(t, out, "# Analysis\n")
}

func TestInsert_MissingIdentifier(t *testing.T) {
	path := writeFile(t, "record.yaml", "sportName: Football\n")

	out, _, err := execute(t, "", "--format", "json", "insert", "-r", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeBuildFailed, resp.Error.Code)
}

func TestInsert_UnknownEntity(t *testing.T) {
	path := writeFile(t, "record.yaml", "analysisId: 12\n")

	out, _, err := execute(t, "", "insert", "-r", path, "--entity", "Spaceship")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeBuildFailed+"]")
}

func TestUpdate(t *testing.T) {
	path := writeFile(t, "record.json", `{"analysisId": "12", "sportName": "Football"}`)

	out, _, err := execute(t, "", "update", "--record", path)
	require.NoError(t, err)

	assert.Contains(t, out, "DELETE")
	assert.Contains(t, out, "INSERT")
	assert.Contains(t, out, "WHERE")
	assert.Contains(t, out, `"N.A."`)
}

func TestDelete(t *testing.T) {
	out, _, err := execute(t, "", "delete", "12")
	require.NoError(t, err)

	assert.Contains(t, out, "?article iadas:hasAnalysis iadas-data:Analysis_12 .")
	assert.NotContains(t, out, "INSERT")
}

func TestFetchQuery(t *testing.T) {
	out, _, err := execute(t, "", "fetch-query", "12")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT ?entity ?property ?value WHERE {")
	assert.Contains(t, out, "iadas-data:Analysis_12 ?property ?value .")

	out, _, err = execute(t, "", "fetch-query", "a-1", "--search", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, `FILTER(CONTAINS(LCASE(?analysisId), LCASE("a-1")))`)
	assert.Contains(t, out, "LIMIT 5")
}

func TestParse(t *testing.T) {
	path := writeFile(t, "results.json", selectResults)

	t.Run("table", func(t *testing.T) {
		out, _, err := execute(t, "", "parse", path)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "analysis\tvi\tvd\tcategoryVI\tcategoryVD\tresultatRelation\tdegreR", lines[0])
		assert.Contains(t, lines[1], "Anxiety\tBinge eating")
	})

	t.Run("types", func(t *testing.T) {
		out, _, err := execute(t, "", "parse", path, "--types")
		require.NoError(t, err)
		assert.Contains(t, out, "variable\ttype\n")
		assert.Contains(t, out, "analysis\t")
		assert.Contains(t, out, "degreR\t")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := execute(t, "", "--format", "json", "parse", path, "--types")
		require.NoError(t, err)
		data := decodeResponse(t, out).Data.(map[string]any)
		rows := data["rows"].([]any)
		require.Len(t, rows, 1)
		assert.Equal(t, "Anxiety", rows[0].(map[string]any)["vi"])
		assert.Contains(t, data, "columnTypes")
	})
}

func TestParse_Malformed(t *testing.T) {
	path := writeFile(t, "results.json", `{"head": {}}`)

	out, _, err := execute(t, "", "--format", "json", "parse", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeBadResults, decodeResponse(t, out).Error.Code)
}

func TestGraph(t *testing.T) {
	path := writeFile(t, "results.json", selectResults)

	out, _, err := execute(t, "", "--format", "json", "graph", path)
	require.NoError(t, err)
	g := decodeResponse(t, out).Data.(map[string]any)
	nodes := g["nodes"].([]any)
	assert.Equal(t, "entity_0", nodes[0].(map[string]any)["id"])
	assert.NotEmpty(t, g["edges"])

	out, _, err = execute(t, "", "--format", "json", "graph", path, "--network")
	require.NoError(t, err)
	net := decodeResponse(t, out).Data.(map[string]any)
	links := net["links"].([]any)
	require.Len(t, links, 1)
	assert.Equal(t, []any{"12"}, links[0].(map[string]any)["allAnalyses"])
}

func TestHierarchy(t *testing.T) {
	path := writeFile(t, "hierarchy.json", hierarchyResults)

	out, _, err := execute(t, "", "hierarchy", path, "--concept", "Anxiety")
	require.NoError(t, err)
	assert.Contains(t, out, "Emotional factor")
}

func TestHierarchy_FailureReported(t *testing.T) {
	path := writeFile(t, "hierarchy.json", "not json")

	out, _, err := execute(t, "", "--format", "json", "hierarchy", path, "--concept", "Anxiety")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	env := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "Anxiety", env["concept"])
	assert.NotEmpty(t, env["error"])
}
