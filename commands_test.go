package main

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

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTierCommand(t *testing.T) {
	out, err := execute(t, "tier", "Chief Stewardess", "Stewardess", "Chef")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got, "tier")
	assert.Contains(t, got, "match_level")
}

func TestTierCommand_EmptyTitle(t *testing.T) {
	_, err := execute(t, "tier", "   ")
	assert.Error(t, err)
}

func TestChunkCommand(t *testing.T) {
	cv := "PROFILE\n" + strings.Repeat("Reliable deckhand with tender experience. ", 20) +
		"\n\nEXPERIENCE\n" + strings.Repeat("M/Y Aurora 2019-2023, deckhand duties. ", 20)
	path := filepath.Join(t.TempDir(), "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte(cv), 0o600))

	out, err := execute(t, "chunk", path)
	require.NoError(t, err)

	var chunks []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &chunks))
	assert.NotEmpty(t, chunks)
}

func TestChunkCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "chunk", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
