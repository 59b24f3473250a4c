package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanlex/internal/preflight"
)

func TestDoctorCmd_PassesAndWritesMarker(t *testing.T) {
	// Given: a project with a valid corpus and the static embedder
	dir := testEnv(t)

	// When: running doctor
	out, err := run(t, dir, "doctor")

	// Then: every required check passes and serve will skip its check
	require.NoError(t, err)
	assert.Contains(t, out, "AmanLex System Check")
	assert.Contains(t, out, "[PASS] corpus: 4 entries")
	assert.Contains(t, out, "[PASS] embedder")
	assert.False(t, preflight.NeedsCheck(filepath.Join(dir, dataDirName), filepath.Join(dir, "corpus.json")))
}

func TestDoctorCmd_JSON(t *testing.T) {
	dir := testEnv(t)

	out, err := run(t, dir, "doctor", "--json")

	require.NoError(t, err)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "ready", report.Status)
	require.NotEmpty(t, report.Checks)
	assert.Equal(t, "config", report.Checks[0].Name)
	assert.Equal(t, "pass", report.Checks[0].Status)
}

func TestDoctorCmd_FailsOnBrokenCorpus(t *testing.T) {
	// Given: a corpus file that is not a JSON array
	dir := testEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.json"), []byte(`{"entries": 1}`), 0o644))

	// When: running doctor
	out, err := run(t, dir, "doctor")

	// Then: the corpus check is reported as critical
	require.Error(t, err)
	assert.Contains(t, out, "[FAIL] corpus")
	assert.Contains(t, out, "Status: FAILED")
	assert.NoFileExists(t, filepath.Join(dir, dataDirName, preflight.MarkerFile))
}
