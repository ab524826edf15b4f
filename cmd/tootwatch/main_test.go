package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(id, extra string) string {
	return fmt.Sprintf(`<div class="status" data-id="%[1]s">
  <a class="status__relative-time" href="/@alice/%[1]s"><time datetime="2023-01-01T00:00:00Z">Jan 1</time></a>
  <a class="status__display-name" href="/@alice"><span class="display-name"><strong>Alice</strong></span></a>
  %[2]s
</div>`, id, extra)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// events reduces JSON lines to "event:post" strings.
func events(t *testing.T, out string) []string {
	t.Helper()
	var got []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var env struct {
			Event string `json:"event"`
			Post  string `json:"post"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &env), sc.Text())
		got = append(got, env.Event+":"+env.Post)
	}
	return got
}

func TestScan(t *testing.T) {
	page := writeFile(t, "page.html", `<html><body><div id="feed">`+
		status("1", "")+
		`<div class="status"><p>no permalink</p></div>`+
		status("2", `<button class="media-spoiler">cw</button>`)+
		`</div></body></html>`)

	out, err := execute(t, "scan", page)
	require.NoError(t, err)
	assert.Equal(t, []string{"added:/@alice/1", "added:/@alice/2"}, events(t, out))
}

func TestScan_ConfigFilters(t *testing.T) {
	page := writeFile(t, "page.html", `<html><body>`+
		status("1", "")+
		status("2", `<button class="media-spoiler">cw</button>`)+
		`</body></html>`)
	cfg := writeFile(t, "tootwatch.yaml", "filters:\n  nsfw: false\n")

	out, err := execute(t, "scan", "--config", cfg, page)
	require.NoError(t, err)
	assert.Equal(t, []string{"added:/@alice/1"}, events(t, out))
}

func TestScan_Errors(t *testing.T) {
	_, err := execute(t, "scan", filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)

	_, err = execute(t, "scan")
	assert.Error(t, err, "file argument required")

	page := writeFile(t, "page.html", `<html><body></body></html>`)
	_, err = execute(t, "--log-level", "loud", "scan", page)
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	page := writeFile(t, "page.html", `<html><body><div id="feed"></div></body></html>`)
	script := writeFile(t, "script.jsonl", strings.Join([]string{
		mustJSON(t, step{Op: "insert", Parent: "#feed", HTML: status("1", "")}),
		mustJSON(t, step{Op: "insert", Parent: "#feed", Before: "[data-id='1']", HTML: status("2", "")}),
		`{"op":"flush"}`,
		`# comments and blank lines are skipped`,
		``,
		mustJSON(t, step{Op: "attr", Target: "[data-id='2']", Name: "class", Value: "status muted"}),
		mustJSON(t, step{Op: "remove", Target: "[data-id='1']"}),
	}, "\n"))

	out, err := execute(t, "replay", page, script)
	require.NoError(t, err)
	assert.Equal(t, []string{"added:/@alice/1", "added:/@alice/2", "removed:/@alice/1"}, events(t, out))
}

func TestReplay_Errors(t *testing.T) {
	page := writeFile(t, "page.html", `<html><body><div id="feed"></div></body></html>`)
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"bad json", `{"op":`, "line 1"},
		{"unknown op", `{"op":"explode"}`, `unknown op "explode"`},
		{"no match", `{"op":"remove","target":"#nope"}`, `no element matches "#nope"`},
		{"missing selector", `{"op":"insert","html":"<p>x</p>"}`, "missing selector"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "replay", page, writeFile(t, "script.jsonl", tt.script))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSettings(t *testing.T) {
	db := filepath.Join(t.TempDir(), "settings.db")

	out, err := execute(t, "settings", "set", "nsfw", "false", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "nsfw = false\n", out)

	out, err = execute(t, "settings", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "nsfw       false\n")
	assert.Contains(t, out, "listboost  true (default)\n")

	out, err = execute(t, "settings", "unset", "nsfw", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "nsfw unset\n", out)

	out, err = execute(t, "settings", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "nsfw       true (default)\n")
}

func TestSettings_Errors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "settings.db")

	_, err := execute(t, "settings", "set", "nsfw", "maybe", "--db", db)
	assert.Error(t, err)
	_, err = execute(t, "settings", "set", "colour", "true", "--db", db)
	assert.Error(t, err)
	_, err = execute(t, "settings", "unset", "colour", "--db", db)
	assert.Error(t, err)
	_, err = execute(t, "settings", "list")
	assert.ErrorContains(t, err, "no settings database")
}

func TestScan_SettingsDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "settings.db")
	_, err := execute(t, "settings", "set", "nsfw", "false", "--db", db)
	require.NoError(t, err)

	cfg := writeFile(t, "tootwatch.toml", fmt.Sprintf("settings_db = %q\n\n[filters]\nnsfw = true\n", db))
	page := writeFile(t, "page.html", `<html><body>`+
		status("1", `<button class="media-spoiler">cw</button>`)+
		`</body></html>`)

	out, err := execute(t, "scan", "-c", cfg, page)
	require.NoError(t, err)
	assert.Empty(t, events(t, out), "database overrides the file")
}

func TestWatch_RequiresURL(t *testing.T) {
	_, err := execute(t, "watch")
	assert.Error(t, err)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
