package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knoldeck/internal/policy"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knoldeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{File: filepath.Join(t.TempDir(), "absent.yaml")})
	require.NoError(t, err)

	assert.Equal(t, "knoldeck.db", cfg.DB)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "Local", cfg.Timezone)
	assert.Equal(t, "04:00", cfg.Digest.At)
	assert.True(t, cfg.Digest.Enabled)
	assert.Equal(t, policy.Default(), cfg.Policy)
}

func TestLoadPriority(t *testing.T) {
	path := writeYAML(t, `
db: from-file.db
addr: ":9000"
timezone: Europe/Dublin
policy:
  new_cards_per_day: 5
  learning_steps: [1, 10, 60]
  leech_action: tag
digest:
  at: "05:30"
`)
	t.Setenv("KNOLDECK_ADDR", ":9100")
	t.Setenv("KNOLDECK_POLICY__REVIEWS_PER_DAY", "50")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--db", "from-flag.db", "--config", path}))

	opts := OptionsFromFlags(flags)
	assert.True(t, opts.FileRequired)
	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "from-flag.db", cfg.DB, "flag beats file")
	assert.Equal(t, ":9100", cfg.Addr, "env beats file")
	assert.Equal(t, "Europe/Dublin", cfg.Timezone, "file beats default")
	assert.Equal(t, "repos", cfg.ReposDir, "unchanged flag keeps default")
	assert.Equal(t, "05:30", cfg.Digest.At)
	assert.Equal(t, 5, cfg.Policy.NewCardsPerDay)
	assert.Equal(t, 50, cfg.Policy.ReviewsPerDay)
	assert.Equal(t, []int{1, 10, 60}, cfg.Policy.LearningSteps)
	assert.Equal(t, policy.LeechTag, cfg.Policy.LeechAction)
	assert.Equal(t, policy.Default().StartingEase, cfg.Policy.StartingEase)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Dublin", loc.String())
}

func TestLoadEnvList(t *testing.T) {
	t.Setenv("KNOLDECK_POLICY__LEARNING_STEPS", "2, 20,120")
	t.Setenv("KNOLDECK_POLICY__STARTING_EASE", "2.1")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 20, 120}, cfg.Policy.LearningSteps)
	assert.Equal(t, 2.1, cfg.Policy.StartingEase)
}

func TestLoadRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"bad level", "log_level: loud\n"},
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"bad digest time", "digest:\n  at: \"25:99\"\n"},
		{"low ease", "policy:\n  starting_ease: 1.1\n"},
		{"bad leech action", "policy:\n  leech_action: delete\n"},
		{"empty steps", "policy:\n  learning_steps: []\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(Options{File: writeYAML(t, tc.yaml), FileRequired: true})
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiredFileMissing(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "absent.yaml"), FileRequired: true})
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KNOLDECK_LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("KNOLDECK_LOG_LEVEL") })

	cfg, err := Load(Options{EnvFiles: []string{filepath.Join(dir, "missing.env"), envFile}})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "DEBUG", cfg.Level().String())
}
