package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestDefaultsMirrorObservedDeployment(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyEnv(noEnv)
	cfg.ApplyDefaults()

	assert.Equal(t, ProviderAzure, cfg.Speech.STTProvider)
	assert.Equal(t, ProviderAzure, cfg.Speech.TTSProvider)
	assert.Equal(t, "en-US", cfg.Speech.Language)
	assert.Equal(t, "en-US-JessaRUS", cfg.Speech.Voice.Name)
	assert.Equal(t, "Female", cfg.Speech.Voice.Gender)
	assert.Equal(t, "riff-16khz-16bit-mono-pcm", cfg.Speech.OutputFormat)
	assert.Equal(t, "https://directline.botframework.com/v3/directline", cfg.Bot.BaseURL)
	assert.Equal(t, 0, cfg.Bot.PollRetries)
	assert.InDelta(t, 0.55, cfg.WakeSensitivity(), 1e-9)
	assert.Equal(t, 9*time.Minute, cfg.TokenTTL())
	assert.Equal(t, BackendMiniaudio, cfg.Audio.Backend)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 30*time.Second, cfg.Loop.StepTimeout.Std())
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
speech:
  key: file-key
  tts_provider: deepgram
  token_ttl: 0s
  deepgram:
    api_key: dg
    voice: aura-luna-en
bot:
  secret: s3cret
  poll_retries: 3
  poll_interval: 250ms
wake:
  phrase: computer
  sensitivity: 0
audio:
  backend: portaudio
  welcome_clip: clips/welcome.wav
loop:
  step_timeout: 1m
`)
	cfg := &Config{}
	require.NoError(t, Parse(data, cfg))
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "file-key", cfg.Speech.Key)
	assert.Equal(t, ProviderDeepgram, cfg.Speech.TTSProvider)
	assert.Equal(t, ProviderAzure, cfg.Speech.STTProvider)
	assert.Equal(t, time.Duration(0), cfg.TokenTTL(), "explicit zero ttl must survive defaults")
	assert.Equal(t, 0.0, cfg.WakeSensitivity(), "explicit zero sensitivity must survive defaults")
	assert.Equal(t, 3, cfg.Bot.PollRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Bot.PollInterval.Std())
	assert.Equal(t, "computer", cfg.Wake.Phrase)
	assert.Equal(t, BackendPortaudio, cfg.Audio.Backend)
	assert.Equal(t, time.Minute, cfg.Loop.StepTimeout.Std())
	assert.True(t, cfg.UsesProvider(ProviderDeepgram))
}

func TestParseRejectsUnknownFieldsAndBadDurations(t *testing.T) {
	require.Error(t, Parse([]byte("bot:\n  secrets: typo\n"), &Config{}))
	require.Error(t, Parse([]byte("loop:\n  step_timeout: soon\n"), &Config{}))
	require.NoError(t, Parse(nil, &Config{}))
}

func TestEnvironmentOverridesSecrets(t *testing.T) {
	cfg := &Config{Speech: SpeechConfig{Key: "file-key"}, Bot: BotConfig{Secret: "file-secret"}}
	cfg.ApplyEnv(envOf(map[string]string{
		EnvAzureSpeechKey:   "env-key",
		EnvDirectLineSecret: "",
		EnvDeepgramAPIKey:   "env-dg",
		EnvUserID:           "user-7",
	}))

	assert.Equal(t, "env-key", cfg.Speech.Key)
	assert.Equal(t, "file-secret", cfg.Bot.Secret, "empty variables do not override")
	assert.Equal(t, "env-dg", cfg.Speech.Deepgram.APIKey)
	assert.Equal(t, "user-7", cfg.Bot.UserID)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Speech: SpeechConfig{Key: "k"}, Bot: BotConfig{Secret: "s"}}
		cfg.ApplyDefaults()
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing speech key", func(c *Config) { c.Speech.Key = "" }, "speech.key"},
		{"missing bot secret", func(c *Config) { c.Bot.Secret = "" }, "bot.secret"},
		{"unknown provider", func(c *Config) { c.Speech.STTProvider = "whisper" }, "speech.stt_provider"},
		{"deepgram without key", func(c *Config) { c.Speech.TTSProvider = ProviderDeepgram }, "speech.deepgram.api_key"},
		{"negative retries", func(c *Config) { c.Bot.PollRetries = -1 }, "bot.poll_retries"},
		{"sensitivity out of range", func(c *Config) { s := 1.5; c.Wake.Sensitivity = &s }, "wake.sensitivity"},
		{"unknown backend", func(c *Config) { c.Audio.Backend = "alsa" }, "audio.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFileWithEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "ema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("speech:\n  key: file-key\n"), 0o644))
	t.Setenv(EnvDirectLineSecret, "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Speech.Key)
	assert.Equal(t, "env-secret", cfg.Bot.Secret)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(EnvAzureSpeechKey, "")
	require.NoError(t, os.Unsetenv(EnvAzureSpeechKey))
	t.Setenv(EnvDirectLineSecret, "s")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte(EnvAzureSpeechKey+"=dotenv-key\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.Speech.Key)
}

func TestLoadMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok, "schema has properties")
	for _, key := range []string{"speech", "bot", "wake", "audio", "loop"} {
		assert.Contains(t, properties, key)
	}
}
