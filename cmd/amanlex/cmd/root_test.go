package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCorpus = `[
  {
    "entry_id": "RPC-308",
    "type": "statute_section",
    "title": "Theft",
    "canonical_citation": "Revised Penal Code, Article 308",
    "summary": "Theft is committed by any person who, with intent to gain but without violence or intimidation, takes personal property of another without consent.",
    "tags": ["theft", "property", "crime"],
    "law_family": "Revised Penal Code",
    "article_no": "308",
    "status": "active",
    "effective_date": "1932-01-01",
    "verified": true,
    "jurisdiction": "PH"
  },
  {
    "entry_id": "RPC-309",
    "type": "statute_section",
    "title": "Penalties for theft",
    "canonical_citation": "Revised Penal Code, Article 309",
    "summary": "The penalty for theft depends on the value of the property stolen.",
    "tags": ["theft", "penalty"],
    "law_family": "Revised Penal Code",
    "article_no": "309",
    "status": "active",
    "effective_date": "1932-01-01",
    "jurisdiction": "PH"
  },
  {
    "entry_id": "RPC-293",
    "type": "statute_section",
    "title": "Robbery",
    "canonical_citation": "Revised Penal Code, Article 293",
    "summary": "Robbery is the taking of personal property belonging to another with violence against or intimidation of persons.",
    "tags": ["robbery", "property", "crime"],
    "law_family": "Revised Penal Code",
    "article_no": "293",
    "status": "active",
    "effective_date": "1932-01-01",
    "jurisdiction": "PH"
  },
  {
    "entry_id": "ROC-114-7",
    "type": "rule_of_court",
    "title": "Capital offense or an offense punishable by reclusion perpetua or life imprisonment, not bailable",
    "canonical_citation": "Rules of Court, Rule 114, Section 7",
    "summary": "No person charged with a capital offense shall be admitted to bail when evidence of guilt is strong.",
    "tags": ["bail", "criminal procedure"],
    "rule_no": "114",
    "section_no": "7",
    "status": "active",
    "effective_date": "2000-12-01",
    "jurisdiction": "PH"
  }
]`

// testEnv isolates config, logs and metrics in temp dirs and returns the
// config dir holding corpus.json.
func testEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"AMANLEX_CORPUS", "AMANLEX_EMBEDDER", "AMANLEX_GENERATOR", "AMANLEX_RERANKER", "AMANLEX_REDIS_ADDR"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.json"), []byte(testCorpus), 0o644))
	return dir
}

// run executes the root command with args and returns stdout.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", dir}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"serve", "search", "ask", "index", "eval", "bootstrap", "misses", "stats", "config", "doctor", "version"}
	for _, name := range want {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, sub.Name())
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"config", "corpus", "debug", "profile-cpu", "profile-mem", "profile-trace"} {
		require.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_ProfilesWritten(t *testing.T) {
	dir := testEnv(t)
	cpu := filepath.Join(t.TempDir(), "cpu.prof")
	mem := filepath.Join(t.TempDir(), "heap.prof")

	_, err := run(t, dir, "--profile-cpu", cpu, "--profile-mem", mem, "version", "--short")

	require.NoError(t, err)
	require.FileExists(t, cpu)
	require.FileExists(t, mem)
}
