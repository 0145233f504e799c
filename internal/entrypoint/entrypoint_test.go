package entrypoint

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const proxyTemplate = `server {
    listen 443 ssl;
    server_name ${DOMAIN};
    ssl_certificate /etc/letsencrypt/live/$DOMAIN/fullchain.pem;
    location / {
        proxy_set_header Host $host;
        proxy_pass http://api:8000;
    }
}
`

// testConfig writes the template into a temp dir and wires a recorder
// in place of exec.
func testConfig(t *testing.T, template string) (*Config, *[][]string) {
	t.Helper()

	dir := t.TempDir()
	templatePath := filepath.Join(dir, "default.conf.template")
	require.NoError(t, os.WriteFile(templatePath, []byte(template), 0o600))

	var calls [][]string
	cfg := &Config{
		TemplatePath: templatePath,
		OutputPath:   filepath.Join(dir, "conf.d", "default.conf"),
		Argv:         []string{"nginx", "-g", "daemon off;"},
		Exec: func(argv []string) error {
			calls = append(calls, argv)
			return nil
		},
	}
	return cfg, &calls
}

func TestRunRequiresDomain(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		t.Setenv("DOMAIN", "")
		cfg, calls := testConfig(t, proxyTemplate)

		err := Run(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DOMAIN")
		assert.Empty(t, *calls, "nginx must not start without a domain")
		assert.NoFileExists(t, cfg.OutputPath)
	})

	t.Run("unset", func(t *testing.T) {
		// t.Setenv records the old value for cleanup, the Unsetenv
		// leaves the variable absent for the test body.
		t.Setenv("DOMAIN", "")
		require.NoError(t, os.Unsetenv("DOMAIN"))
		cfg, calls := testConfig(t, proxyTemplate)

		err := Run(cfg)
		require.Error(t, err)
		assert.Empty(t, *calls)
		assert.NoFileExists(t, cfg.OutputPath)
	})
}

func TestRunRendersAndExecs(t *testing.T) {
	t.Setenv("DOMAIN", "mousetube.example.org")

	cfg, calls := testConfig(t, proxyTemplate)
	require.NoError(t, Run(cfg))

	rendered, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	content := string(rendered)

	// Both substitution forms resolved, nginx runtime vars untouched.
	assert.Contains(t, content, "server_name mousetube.example.org;")
	assert.Contains(t, content, "/etc/letsencrypt/live/mousetube.example.org/fullchain.pem")
	assert.Contains(t, content, "proxy_set_header Host $host;")
	assert.NotContains(t, content, "DOMAIN")

	require.Len(t, *calls, 1)
	assert.Equal(t, []string{"nginx", "-g", "daemon off;"}, (*calls)[0])
}

func TestRunRenderIsIdempotent(t *testing.T) {
	t.Setenv("DOMAIN", "mousetube.example.org")

	cfg, _ := testConfig(t, proxyTemplate)
	require.NoError(t, Run(cfg))
	first, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)

	require.NoError(t, Run(cfg))
	second, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunMissingTemplate(t *testing.T) {
	t.Setenv("DOMAIN", "mousetube.example.org")

	cfg, calls := testConfig(t, proxyTemplate)
	cfg.TemplatePath = filepath.Join(t.TempDir(), "missing.template")

	err := Run(cfg)
	require.Error(t, err)
	assert.Empty(t, *calls)
	assert.NoFileExists(t, cfg.OutputPath)
}

func TestRunWritesWorldReadableConfig(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are unix specific")
	}
	t.Setenv("DOMAIN", "mousetube.example.org")

	cfg, _ := testConfig(t, proxyTemplate)
	require.NoError(t, Run(cfg))

	info, err := os.Stat(cfg.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestRunExecFailure(t *testing.T) {
	t.Setenv("DOMAIN", "mousetube.example.org")

	cfg, _ := testConfig(t, proxyTemplate)
	cfg.Exec = func([]string) error { return os.ErrPermission }

	err := Run(cfg)
	require.Error(t, err)
	// The configuration is rendered before the handover fails.
	assert.FileExists(t, cfg.OutputPath)
}

func TestRunDefaultsArgv(t *testing.T) {
	t.Setenv("DOMAIN", "mousetube.example.org")

	cfg, calls := testConfig(t, proxyTemplate)
	cfg.Argv = nil
	require.NoError(t, Run(cfg))

	require.Len(t, *calls, 1)
	assert.Equal(t, DefaultArgv(), (*calls)[0])
}
