package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/przepisy/internal/session"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Kuchnia Basi</title>
  <link>https://kuchniabasi.example</link>
  <item>
    <title>Pierogi ruskie</title>
    <link>https://kuchniabasi.example/pierogi</link>
    <guid>pierogi</guid>
    <category>Obiady</category>
    <description><![CDATA[<p>Klasyka.</p><ul><li>mąka</li><li>ziemniaki</li></ul>]]></description>
  </item>
  <item>
    <title>Sernik</title>
    <link>https://kuchniabasi.example/sernik</link>
    <guid>sernik</guid>
    <description>Puszysty sernik.</description>
  </item>
</channel>
</rss>`

func resetFlags() {
	opts.configPath = ""
	opts.dbPath = ""
	opts.startURL = ""
	opts.remote = ""
	opts.logLevel = ""
	opts.quiet = false
	importOpts.permissive = false
	refreshOpts.force = false
	tokenOpts.user = ""
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`
[database]
path = %q
timeout = "1s"
search_index = %q

[session]
user_id = "ala"
secret = "sekret"

[import]
author_id = "ala"
user_agent = "przepisy-test/1.0"
concurrency = 1
refresh_interval = "1h"

[log]
level = "off"
`, filepath.Join(dir, "przepisy.db"), filepath.Join(dir, "index.bleve"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "przepisy dev")
	assert.Contains(t, out, "github.com/pders01/przepisy")
	assert.Contains(t, out, "Przepisy z ulubionych blogów")
}

func TestGenerateConfigCommand(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	out, err := execute(t, "config", "generate")
	require.NoError(t, err)

	configFile := filepath.Join(home, ".config", "przepisy", "config.toml")
	assert.FileExists(t, configFile)
	assert.Contains(t, out, "Generated default configuration at:")
}

func TestImportSourcesRefreshRemove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	cfgPath := writeConfig(t, t.TempDir())

	out, err := execute(t, "--config", cfgPath, "import", srv.URL+"/feed.xml")
	require.Error(t, err, "loopback feeds need --allow-local")
	assert.Contains(t, out, "private IP")

	out, err = execute(t, "--config", cfgPath, "import", "--allow-local", srv.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Kuchnia Basi: 2 przepisów")

	m := regexp.MustCompile(`\(([0-9a-f-]{36})\)`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	sourceID := m[1]

	out, err = execute(t, "--config", cfgPath, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, sourceID)
	assert.Contains(t, out, "Kuchnia Basi")

	out, err = execute(t, "--config", cfgPath, "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "pominięto")

	out, err = execute(t, "--config", cfgPath, "remove", sourceID)
	require.NoError(t, err)
	assert.Contains(t, out, "Usunięto "+sourceID)

	out, err = execute(t, "--config", cfgPath, "sources")
	require.NoError(t, err)
	assert.NotContains(t, out, sourceID)
}

func TestTokenCommand(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())

	out, err := execute(t, "--config", cfgPath, "token", "--user", "basia")
	require.NoError(t, err)

	user, err := session.VerifyToken(strings.TrimSpace(out), []byte("sekret"))
	require.NoError(t, err)
	assert.Equal(t, "basia", user)
}

func TestDBFlagRejectsTraversal(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())

	_, err := execute(t, "--config", cfgPath, "--db", "../../etc/przepisy.db", "sources")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --db")
}
