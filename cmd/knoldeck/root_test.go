package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands(t *testing.T) {
	tmp := t.TempDir()
	notes := filepath.Join(tmp, "notes")
	require.NoError(t, os.MkdirAll(notes, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(notes, "verbs.md"), []byte("Q: ser?\nA: to be\n---\nQ: tener?\nA: to have\n"), 0o644))

	global := []string{
		"--db", filepath.Join(tmp, "data", "knoldeck.db"),
		"--config", filepath.Join(tmp, "knoldeck.yaml"),
		"--env-file", filepath.Join(tmp, ".env"),
		"--timezone", "UTC",
		"--log-level", "error",
	}
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "knoldeck.yaml"), []byte("repos_dir: "+filepath.Join(tmp, "repos")+"\n"), 0o644))
	run := func(args ...string) string {
		t.Helper()
		out, err := execute(t, append(global, args...)...)
		require.NoError(t, err, out)
		return out
	}

	out := run("source", "add", notes, "--deck", "spanish")
	assert.Contains(t, out, "Added local source 1")

	out = run("source", "list")
	assert.Contains(t, out, "spanish")
	assert.Contains(t, out, "never")

	out = run("sync")
	assert.Contains(t, out, "PARSED")

	out = run("due")
	assert.Regexp(t, `spanish\s+0\s+2\s+0`, out)

	out = run("deck", "settings", "spanish", `{"new_cards_per_day": 1}`)
	assert.Contains(t, out, `"new_cards_per_day":1`)
	out = run("due", "--json")
	assert.Contains(t, out, `"new": 1`)

	out = run("deck", "settings", "spanish", "--clear")
	assert.Contains(t, out, "Overrides: {}")

	_, err := execute(t, append(global, "deck", "settings", "spanish", `{"bogus": true}`)...)
	assert.Error(t, err)

	_, err = execute(t, append(global, "card", "show", "missing")...)
	assert.Error(t, err)

	out = run("source", "remove", "1")
	assert.Contains(t, out, "Removed source 1")
	out = run("due")
	assert.Regexp(t, `spanish\s+0\s+0\s+0`, out, "settings keep the deck listed")
}

func TestBadConfigFails(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "due")
	assert.Error(t, err)
}
