package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestDialectsCommand_Text(t *testing.T) {
	out, _, err := runCLI(t, "", "dialects")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "commercial")
	assert.Contains(t, lines[0], "internal-rewrites=true")
	assert.Contains(t, lines[1], "postgres")
	assert.Contains(t, lines[1], "internal-rewrites=false")
}

func TestDialectsCommand_JSON(t *testing.T) {
	out, _, err := runCLI(t, "", "dialects", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []DialectInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "commercial", resp.Data[0].Name)
	assert.True(t, resp.Data[0].CTEs)
}

func TestRewriteCommand_Text(t *testing.T) {
	out, _, err := runCLI(t, "", "rewrite", "SELECT n_name FROM nation WHERE n_regionkey IN (1, 2)")
	require.NoError(t, err)

	lines := strings.SplitN(out, "\n", 2)
	assert.Equal(t, "SELECT n_name FROM nation WHERE (n_regionkey = 1 OR n_regionkey = 2)", lines[0])
	assert.Contains(t, out, "H8")
	assert.Contains(t, out, "Applied 1 rewrite(s)")
}

func TestRewriteCommand_JSON(t *testing.T) {
	out, _, err := runCLI(t, "",
		"rewrite", "SELECT n_name FROM nation WHERE n_regionkey IN (1, 2)", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   RewriteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "SELECT n_name FROM nation WHERE (n_regionkey = 1 OR n_regionkey = 2)", resp.Data.Query)
	require.Len(t, resp.Data.Report.Firings, 1)
	assert.Equal(t, "H8", resp.Data.Report.Firings[0].RuleID)
	assert.NotEmpty(t, resp.Data.Report.ID)
}

func TestRewriteCommand_WithCatalog(t *testing.T) {
	out, errOut, err := runCLI(t, "",
		"rewrite", "SELECT DISTINCT n_nationkey, n_name FROM nation",
		"-c", "testdata/tpch.yaml", "-d", "postgres", "-v")
	require.NoError(t, err)

	assert.Contains(t, out, "SELECT n_nationkey, n_name FROM nation")
	assert.Contains(t, out, "H5")
	assert.Contains(t, errOut, "loaded catalog testdata/tpch.yaml (1 tables)")
}

func TestRewriteCommand_ReadsStdin(t *testing.T) {
	out, _, err := runCLI(t, "SELECT n_name FROM nation\n", "rewrite")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT n_name FROM nation")
}

func TestRewriteCommand_CommercialDialectFoldsUpper(t *testing.T) {
	out, _, err := runCLI(t, "", "rewrite", "SELECT n_name FROM nation", "-d", "commercial")
	require.NoError(t, err)
	assert.Contains(t, out, "SELECT N_NAME FROM NATION")
}

func TestRewriteCommand_Errors(t *testing.T) {
	cases := []struct {
		name     string
		stdin    string
		args     []string
		exitCode int
		errCode  string
	}{
		{"syntax error", "", []string{"rewrite", "SELECT FROM nation"}, ExitFailure, "E002"},
		{"malformed query", "", []string{"rewrite", "SELECT x.n_name FROM nation"}, ExitFailure, "E003"},
		{"unknown dialect", "", []string{"rewrite", "SELECT 1 FROM nation", "-d", "oracle"}, ExitCommandError, "E005"},
		{"bad catalog path", "", []string{"rewrite", "SELECT 1 FROM nation", "-c", "nope.yaml"}, ExitCommandError, "E004"},
		{"no query", "", []string{"rewrite"}, ExitCommandError, "E001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := runCLI(t, tc.stdin, tc.args...)
			require.Error(t, err)
			assert.Equal(t, tc.exitCode, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tc.errCode+"]")
		})
	}
}

func TestValidateCommand(t *testing.T) {
	out, _, err := runCLI(t, "", "validate", "SELECT n_name FROM nation")
	require.NoError(t, err)
	assert.Contains(t, out, "query is well formed")

	out, _, err = runCLI(t, "", "validate", "SELECT x.n_name FROM nation")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "UNRESOLVED_COLUMN")
}

func TestValidateCommand_JSON(t *testing.T) {
	out, _, err := runCLI(t, "", "validate", "SELECT n_name FROM nation", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
}

func TestValidateCommand_JSONInvalid(t *testing.T) {
	out, _, err := runCLI(t, "", "validate", "SELECT x.n_name FROM nation", "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "UNRESOLVED_COLUMN", resp.Error.Code)
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	_, _, err := runCLI(t, "", "dialects", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, 2, GetExitCode(NewExitError(2, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
