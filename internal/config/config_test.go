package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv neutralizes variables the loader reads from the process environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NODE_ENV", "PORT", "SENTRY_DSN",
		"UPLOAD_ENV", "UPLOAD_HOST", "UPLOAD_PORT", "UPLOAD_STORAGE_ROOT", "UPLOAD_CREATE_PARENTS",
		"UPLOAD_FILE_MODE", "UPLOAD_LOG_LEVEL", "UPLOAD_LOG_FORMAT", "UPLOAD_SENTRY_DSN",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FileValues(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()

	path := writeConfig(t, "upload-server.yaml", `
env: production
host: 127.0.0.1
port: 8080
storage_root: `+root+`
create_parents: true
file_mode: "0600"
log_level: DEBUG
log_format: json
`)

	cfg, err := Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
	assert.Equal(t, root, cfg.StorageRoot)
	assert.True(t, cfg.CreateParents)
	assert.Equal(t, os.FileMode(0600), cfg.FileMode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	path := writeConfig(t, "upload-server.json", `{"port": 8080, "storage_root": "`+filepath.ToSlash(root)+`"}`)

	t.Setenv("PORT", "9090")
	t.Setenv("NODE_ENV", "staging")
	t.Setenv("UPLOAD_CREATE_PARENTS", "true")

	cfg, err := Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "staging", cfg.Env)
	assert.True(t, cfg.CreateParents)

	t.Setenv("UPLOAD_PORT", "7070")
	cfg, err = Load(LoadOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port, "prefixed variable wins over bare PORT")
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	envRoot := t.TempDir()
	flagRoot := t.TempDir()
	t.Setenv("UPLOAD_STORAGE_ROOT", envRoot)
	t.Setenv("UPLOAD_PORT", "7070")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("root", "", "")
	flags.Int("port", 0, "")
	flags.Bool("create-parents", false, "")
	require.NoError(t, flags.Parse([]string{"--root", flagRoot}))

	cfg, err := Load(LoadOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), Flags: flags})
	require.Error(t, err, "explicit config file must exist")
	assert.Nil(t, cfg)

	cfg, err = Load(LoadOptions{Flags: flags})
	require.NoError(t, err)
	assert.Equal(t, flagRoot, cfg.StorageRoot)
	assert.Equal(t, 7070, cfg.Port, "unset flag does not shadow env")
	assert.False(t, cfg.CreateParents)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	t.Setenv("UPLOAD_STORAGE_ROOT", root)

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.False(t, cfg.CreateParents)
	assert.Equal(t, os.FileMode(0644), cfg.FileMode)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
}

func TestLoad_RelativeStorageRoot(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "data"), 0755))
	t.Chdir(dir)
	t.Setenv("UPLOAD_STORAGE_ROOT", "data")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.StorageRoot))
	assert.Equal(t, "data", filepath.Base(cfg.StorageRoot))
}

func TestLoad_InvalidConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPLOAD_STORAGE_ROOT", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("UPLOAD_LOG_FORMAT", "xml")

	_, err := Load(LoadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "2 config validation errors")
}

func TestLoad_BadFileMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPLOAD_STORAGE_ROOT", t.TempDir())
	t.Setenv("UPLOAD_FILE_MODE", "rw-r--r--")

	_, err := Load(LoadOptions{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	valid := AppConfig{Port: 80, StorageRoot: root, FileMode: 0644, LogLevel: "info", LogFormat: "text"}
	assert.Empty(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *AppConfig)
		field  string
	}{
		{"port too low", func(c *AppConfig) { c.Port = 0 }, "port"},
		{"port too high", func(c *AppConfig) { c.Port = 70000 }, "port"},
		{"empty root", func(c *AppConfig) { c.StorageRoot = "" }, "storage_root"},
		{"root is file", func(c *AppConfig) { c.StorageRoot = file }, "storage_root"},
		{"zero mode", func(c *AppConfig) { c.FileMode = 0 }, "file_mode"},
		{"mode with type bits", func(c *AppConfig) { c.FileMode = os.ModeDir | 0755 }, "file_mode"},
		{"bad level", func(c *AppConfig) { c.LogLevel = "verbose" }, "log_level"},
		{"bad format", func(c *AppConfig) { c.LogFormat = "xml" }, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestParseFileMode(t *testing.T) {
	for in, want := range map[string]os.FileMode{"0644": 0644, "600": 0600, "0o755": 0755} {
		got, err := ParseFileMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "0x1f", "999"} {
		_, err := ParseFileMode(in)
		assert.Error(t, err, in)
	}
}
