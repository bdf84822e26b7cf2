package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iTwin/insights-api-sample-console-app/internal/insights"
	"github.com/iTwin/insights-api-sample-console-app/internal/insights/insightstest"
)

const testPlan = `report:
  name: QTO
mapping:
  name: QTOMapping
groups:
  - name: Walls
    query: SELECT * FROM bis.Wall
    properties:
      - name: Yaw
        ecProperties:
          - schema: BisCore
            class: GeometricElement3d
            name: Yaw
    calculatedProperties:
      - type: Length
    customCalculations:
      - name: DoubleYaw
        formula: Yaw * 2
`

// execute runs the root command in-process and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// env holds the connection flags shared by the commands of one test.
type env struct {
	server *insightstest.Server
	runlog string
}

func newEnv(t *testing.T) *env {
	return &env{
		server: insightstest.NewServer(t),
		runlog: filepath.Join(t.TempDir(), "state", "runs.db"),
	}
}

func (e *env) args(cmd string, extra ...string) []string {
	args := []string{cmd,
		"--base-url", e.server.URL,
		"--token", "test-token",
		"--project", "proj-1",
		"--imodel", "im-1",
		"--runlog", e.runlog,
		"--log-level", "error",
	}
	return append(args, extra...)
}

func writePlan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPlan), 0o644))
	return path
}

func TestProvision_CreatesThenReuses(t *testing.T) {
	e := newEnv(t)
	planPath := writePlan(t)

	out, err := execute(t, e.args("provision", "--plan", planPath)...)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`Get or Created report: QTO - id-\d+`), out)
	assert.Contains(t, out, "Get or Created mapping: QTOMapping - ")
	assert.Contains(t, out, "Get or Created group: Walls - ")
	assert.Contains(t, out, "Get or Created calculated property: SampleCalculatedProperty - ")
	assert.Contains(t, out, "7 created, 0 reused.")
	assert.True(t, strings.HasSuffix(out, "Done.\n"))

	out, err = execute(t, e.args("provision", "--plan", planPath)...)
	require.NoError(t, err)
	assert.Contains(t, out, "0 created, 7 reused.")
	assert.Equal(t, 1, e.server.Requests("POST reports"))
	assert.Equal(t, 1, e.server.Requests("POST groups"))
}

func TestProvision_RequiresPlan(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, e.args("provision")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan path is required")
}

func TestExtract_WaitsForCompletion(t *testing.T) {
	e := newEnv(t)
	e.server.ScriptExtraction("im-1", insights.StateQueued, insights.StateRunning, insights.StateSucceeded)

	out, err := execute(t, e.args("extract", "--interval", "1ms")...)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`Run extraction: job-id-\d+`), out)
	assert.Contains(t, out, "Extraction finished with status: Succeeded - ")
	assert.True(t, strings.HasSuffix(out, "Done.\n"))
	assert.Equal(t, 3, e.server.Requests("GET status"))

	out, err = execute(t, e.args("runs")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Succeeded")
}

func TestExtract_ReportsFailure(t *testing.T) {
	e := newEnv(t)
	e.server.ScriptExtraction("im-1", insights.StateRunning, insights.StateFailed)

	out, err := execute(t, e.args("extract", "--interval", "1ms")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Extraction finished with status: Failed - extraction failed")
}

func TestExtract_Timeout(t *testing.T) {
	e := newEnv(t)
	e.server.ScriptExtraction("im-1", insights.StateRunning)

	out, err := execute(t, e.args("extract", "--interval", "5ms", "--timeout", "20ms")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Extraction run out of time. Given timeout: 20ms")
	assert.True(t, strings.HasSuffix(out, "Done.\n"))

	// A timed-out run stays unfinished in the run log.
	out, err = execute(t, e.args("runs")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Queued")
}

func TestStatus_DefaultsToLatestRun(t *testing.T) {
	e := newEnv(t)

	out, err := execute(t, e.args("extract", "--no-wait")...)
	require.NoError(t, err)
	assert.Equal(t, 0, e.server.Requests("GET status"))
	job := regexp.MustCompile(`job-id-\d+`).FindString(out)
	require.NotEmpty(t, job)

	out, err = execute(t, e.args("status")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Job:    "+job)
	assert.Contains(t, out, "State:  Succeeded")
	assert.Contains(t, out, "Reason: -")
}

func TestStatus_Wait(t *testing.T) {
	e := newEnv(t)
	e.server.ScriptExtraction("im-1", insights.StateRunning, insights.StateRunning, insights.StateSucceeded)

	_, err := execute(t, e.args("extract", "--no-wait")...)
	require.NoError(t, err)

	out, err := execute(t, e.args("status", "--wait", "--interval", "1ms")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Waiting for extraction: job-")
	assert.Contains(t, out, "Extraction finished with status: Succeeded")
}

func TestStatus_NoRecordedRun(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, e.args("status")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass --job")
}

func TestReports_List(t *testing.T) {
	e := newEnv(t)
	e.server.Seed("/reports", map[string]any{"displayName": "Quantities", "projectId": "proj-1", "deleted": false})
	e.server.Seed("/reports", map[string]any{"displayName": "Old", "projectId": "proj-1", "deleted": true})
	e.server.Seed("/reports", map[string]any{"displayName": "Elsewhere", "projectId": "proj-2", "deleted": false})

	out, err := execute(t, e.args("reports")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Quantities")
	assert.Contains(t, out, "TOTAL")
	assert.NotContains(t, out, "Old")
	assert.NotContains(t, out, "Elsewhere")

	out, err = execute(t, e.args("reports", "--all", "-o", "markdown")...)
	require.NoError(t, err)
	assert.Contains(t, out, "| ID")
	assert.Contains(t, out, "Old (deleted)")
}

func TestReports_UnknownOutput(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, e.args("reports", "-o", "csv")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestMappings_List(t *testing.T) {
	e := newEnv(t)
	e.server.Seed("/datasources/iModels/im-1/mappings", map[string]any{"mappingName": "QTOMapping", "extractionEnabled": true})

	out, err := execute(t, e.args("mappings")...)
	require.NoError(t, err)
	assert.Contains(t, out, "QTOMapping")
	assert.Contains(t, out, "enabled")
}

func TestMissingToken(t *testing.T) {
	e := newEnv(t)
	_, err := execute(t, "reports",
		"--base-url", e.server.URL,
		"--project", "proj-1",
		"--token-file", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API token")
}

func TestMissingIModel(t *testing.T) {
	_, err := execute(t, "extract", "--token", "t", "--imodel", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imodel_id is required")
}

func TestConfigFile_FlagsOverride(t *testing.T) {
	e := newEnv(t)
	e.server.Seed("/reports", map[string]any{"displayName": "FromProj1", "projectId": "proj-1", "deleted": false})

	cfgPath := filepath.Join(t.TempDir(), "insights.yaml")
	cfg := "api:\n  base_url: " + e.server.URL + "\n  token: file-token\nproject_id: proj-2\nlogger:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := execute(t, "reports", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No reports in project proj-2.")

	out, err = execute(t, "reports", "--config", cfgPath, "--project", "proj-1")
	require.NoError(t, err)
	assert.Contains(t, out, "FromProj1")
}

func TestConfigFile_Invalid(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "insights.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logger:\n  format: xml\n"), 0o644))

	_, err := execute(t, "runs", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logger.format")
}
