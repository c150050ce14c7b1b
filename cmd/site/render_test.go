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

type renderedJSON struct {
	File   string `json:"file"`
	Markup string `json:"markup"`
	Report struct {
		Headings []struct {
			Tag        string `json:"tag"`
			AssignedID string `json:"assigned_id"`
		} `json:"headings"`
	} `json:"report"`
	Dispatched []struct {
		Target  string `json:"target"`
		Invoked int    `json:"invoked"`
	} `json:"dispatched"`
}

func runSite(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRenderCommandPrintsReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.html")
	require.NoError(t, os.WriteFile(path, []byte(`<h2>Pros</h2><button id="go" onClick={() => console.log('hi')}>Go</button>`), 0o644))

	out, err := runSite(t, "render", path, "--event", "#go:click")
	require.NoError(t, err, out)

	var got renderedJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, path, got.File)
	assert.Contains(t, got.Markup, `id="pros"`)
	assert.Contains(t, got.Markup, `onclick=`)
	require.Len(t, got.Dispatched, 1)
	assert.Equal(t, 1, got.Dispatched[0].Invoked)
}

func TestRenderCommandHonoursFrontMatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	seed := "---\ntype: article\nprocess_headings: false\n---\n# Guide\n\n## Fees\n\nLow.\n"
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	out, err := runSite(t, "render", path, "--scripts=false")
	require.NoError(t, err, out)

	var got renderedJSON
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Contains(t, got.Markup, "<h2>Fees</h2>")
	assert.NotContains(t, got.Markup, "---")
	assert.False(t, strings.Contains(got.Markup, `id="fees"`))
}

func TestRenderCommandMissingFile(t *testing.T) {
	_, err := runSite(t, "render", filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}

func TestRequiredSecretNames(t *testing.T) {
	assert.Equal(t, []string{"Security.SessionSecret"}, requiredSecretNames(map[string]string{}))
	assert.Empty(t, requiredSecretNames(map[string]string{"SECURITY_AUTH_MODE": "firebase"}))
	assert.Equal(t,
		[]string{"Security.SessionSecret", "Security.BootstrapAdminPassword"},
		requiredSecretNames(map[string]string{"SECURITY_AUTH_MODE": "both", "SECURITY_BOOTSTRAP_ADMIN_EMAIL": "a@b.c"}),
	)
}
