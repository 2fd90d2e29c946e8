package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodoo/cli/pkg/connection"
	"vodoo/cli/pkg/odooerr"
)

type fixture struct {
	global, project string
	env             map[string]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	return &fixture{
		global:  filepath.Join(root, "global"),
		project: filepath.Join(root, "project", ".vodoo"),
		env:     map[string]string{},
	}
}

func (f *fixture) loader() Loader {
	return Loader{
		GlobalDir:  f.global,
		ProjectDir: f.project,
		LookupEnv: func(k string) (string, bool) {
			v, ok := f.env[k]
			return v, ok
		},
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

const baseYAML = `
url: https://global.example.com
database: globaldb
username: admin
password: from-file
retry_count: 4
timeout: 12.5
`

func TestLoadGlobalFile(t *testing.T) {
	f := newFixture(t)
	write(t, filepath.Join(f.global, "config.yaml"), baseYAML)

	res, err := f.loader().Load("", Settings{})
	require.NoError(t, err)

	d := res.Descriptor
	assert.Equal(t, "https://global.example.com", d.URL)
	assert.Equal(t, "globaldb", d.Database)
	assert.Equal(t, connection.Secret("from-file"), d.Credential)
	assert.Equal(t, 4, d.Retry.MaxRetries)
	assert.Equal(t, 12500*time.Millisecond, d.Timeout)
	assert.Equal(t, DefaultInstance, res.Instance)
	assert.Equal(t, []string{filepath.Join(f.global, "config.yaml")}, res.Sources)
}

func TestLoadLayerOrder(t *testing.T) {
	f := newFixture(t)
	write(t, filepath.Join(f.global, "config.yaml"), baseYAML)
	write(t, filepath.Join(f.global, "instances", "staging.yaml"), "database: stagingdb\nretry_backoff: 0.25\n")
	write(t, filepath.Join(f.project, "instances", "staging.yaml"), "database: projectdb\nprotocol: legacy\n")
	f.env["ODOO_USERNAME"] = "env-user"
	f.env["ODOO_RETRY_MAX_BACKOFF"] = "5"
	f.env["ODOO_RATE_LIMIT"] = "10"

	retries := 0
	res, err := f.loader().Load("staging", Settings{Password: "from-flag", RetryCount: &retries})
	require.NoError(t, err)

	d := res.Descriptor
	assert.Equal(t, "staging", res.Instance)
	assert.Equal(t, "https://global.example.com", d.URL, "global file")
	assert.Equal(t, "projectdb", d.Database, "project profile wins over global profile")
	assert.Equal(t, connection.ProtocolLegacy, d.Protocol)
	assert.Equal(t, "env-user", d.Username, "environment over files")
	assert.Equal(t, connection.Secret("from-flag"), d.Credential, "flags over environment")
	assert.Equal(t, 0, d.Retry.MaxRetries, "explicit zero flag is honoured")
	assert.Equal(t, 5*time.Second, d.Retry.Backoff.MaxDelay)
	assert.Equal(t, 500*time.Millisecond, d.Retry.Backoff.BaseDelay, "the global profile is not read when a project profile exists")
	assert.Equal(t, 10.0, d.RateLimit.RPS)
	assert.Equal(t, []string{
		filepath.Join(f.global, "config.yaml"),
		filepath.Join(f.project, "instances", "staging.yaml"),
	}, res.Sources)
}

func TestResolveInstanceOrder(t *testing.T) {
	f := newFixture(t)

	name, explicit, err := f.loader().ResolveInstance("")
	require.NoError(t, err)
	assert.Equal(t, DefaultInstance, name)
	assert.False(t, explicit)

	write(t, filepath.Join(f.global, "default-instance"), "# comment\n\nglobal-one\n")
	name, _, err = f.loader().ResolveInstance("")
	require.NoError(t, err)
	assert.Equal(t, "global-one", name)

	write(t, filepath.Join(f.project, "default-instance"), "project-one\n")
	name, _, err = f.loader().ResolveInstance("")
	require.NoError(t, err)
	assert.Equal(t, "project-one", name)

	f.env["VODOO_INSTANCE"] = "from-env"
	name, _, err = f.loader().ResolveInstance("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", name)

	name, explicit, err = f.loader().ResolveInstance("  argument ")
	require.NoError(t, err)
	assert.Equal(t, "argument", name)
	assert.True(t, explicit)
}

func TestNormalizeInstance(t *testing.T) {
	for _, ok := range []string{"prod", "prod-2", "a.b_c", "9"} {
		got, err := NormalizeInstance(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, ok, got)
	}
	for _, bad := range []string{"-prod", "../etc", "a b", "x/y"} {
		_, err := NormalizeInstance(bad)
		assert.Equal(t, odooerr.KindConfiguration, odooerr.KindOf(err), bad)
	}
}

func TestLoadMissingExplicitInstance(t *testing.T) {
	f := newFixture(t)
	_, err := f.loader().Load("ghost", Settings{})
	require.Error(t, err)
	assert.Equal(t, odooerr.KindConfiguration, odooerr.KindOf(err))
	assert.Contains(t, err.Error(), `no config found for instance "ghost"`)

	f.env["ODOO_URL"] = "https://env.example.com"
	f.env["ODOO_DATABASE"] = "db"
	f.env["ODOO_USERNAME"] = "u"
	f.env["ODOO_PASSWORD"] = "p"
	res, err := f.loader().Load("ghost", Settings{})
	require.NoError(t, err, "complete environment credentials stand in for the profile")
	assert.Equal(t, "https://env.example.com", res.Descriptor.URL)
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "non-numeric retry count", env: map[string]string{"ODOO_RETRY_COUNT": "many"}},
		{name: "non-numeric timeout", env: map[string]string{"ODOO_TIMEOUT": "soon"}},
		{name: "negative retry count", env: map[string]string{"ODOO_RETRY_COUNT": "-1"}},
		{name: "unknown protocol", env: map[string]string{"ODOO_PROTOCOL": "xmlrpc"}},
		{name: "zero max backoff", env: map[string]string{"ODOO_RETRY_MAX_BACKOFF": "0"}},
		{name: "malformed yaml", file: "url: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			content := baseYAML
			if tt.file != "" {
				content = tt.file
			}
			write(t, filepath.Join(f.global, "config.yaml"), content)
			for k, v := range tt.env {
				f.env[k] = v
			}
			_, err := f.loader().Load("", Settings{})
			assert.Equal(t, odooerr.KindConfiguration, odooerr.KindOf(err))
		})
	}
}

func TestLoadReportsMissingSettings(t *testing.T) {
	f := newFixture(t)
	_, err := f.loader().Load("", Settings{URL: "https://x.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required settings: database, username, credential")
}

func TestWriteDefaultInstanceAndProfiles(t *testing.T) {
	f := newFixture(t)
	l := f.loader()

	path, err := l.WriteDefaultInstance("prod", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.project, "default-instance"), path)
	name, _, err := l.ResolveInstance("")
	require.NoError(t, err)
	assert.Equal(t, "prod", name)

	_, err = l.WriteDefaultInstance("bad name", false)
	assert.Error(t, err)

	write(t, filepath.Join(f.project, "instances", "prod.yaml"), "url: https://p\n")
	write(t, filepath.Join(f.global, "instances", "prod.yaml"), "url: https://g\n")
	write(t, filepath.Join(f.global, "instances", "dev.yaml"), "url: https://d\n")
	write(t, filepath.Join(f.global, "instances", "notes.txt"), "ignored")

	profiles, err := l.Profiles()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"prod": {filepath.Join(f.project, "instances", "prod.yaml"), filepath.Join(f.global, "instances", "prod.yaml")},
		"dev":  {filepath.Join(f.global, "instances", "dev.yaml")},
	}, profiles)
}
