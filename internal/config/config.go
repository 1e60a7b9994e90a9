// Package config loads the assistant configuration from a YAML file, a .env
// file and the process environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/koscakluka/ema-assistant/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	ProviderAzure    = "azure"
	ProviderDeepgram = "deepgram"

	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"
)

// Environment variables that override secrets from the config file.
const (
	EnvAzureSpeechKey   = "AZURE_SPEECH_KEY"
	EnvDirectLineSecret = "DIRECTLINE_SECRET"
	EnvDeepgramAPIKey   = "DEEPGRAM_API_KEY"
	EnvUserID           = "EMA_USER_ID"
)

const (
	defaultTokenURL     = "https://westeurope.api.cognitive.microsoft.com/sts/v1.0/issueToken"
	defaultSTTURL       = "https://westeurope.stt.speech.microsoft.com/speech/recognition/interactive/cognitiveservices/v1"
	defaultTTSURL       = "https://westeurope.tts.speech.microsoft.com/cognitiveservices/v1"
	defaultBotURL       = "https://directline.botframework.com/v3/directline"
	defaultLanguage     = "en-US"
	defaultVoiceName    = "en-US-JessaRUS"
	defaultVoiceGender  = "Female"
	defaultOutputFormat = "riff-16khz-16bit-mono-pcm"
	defaultWakePhrase   = "hey ema"
	defaultSensitivity  = 0.55
	defaultSampleRate   = 16000
	defaultBufferSize   = 1024

	defaultTokenTTL       = 9 * time.Minute
	defaultPollInterval   = 500 * time.Millisecond
	defaultStepTimeout    = 30 * time.Second
	defaultHTTPTimeout    = 15 * time.Second
	defaultWakeRetryDelay = time.Second
)

type Config struct {
	Speech    SpeechConfig    `yaml:"speech" jsonschema:"description=Speech recognition and synthesis"`
	Bot       BotConfig       `yaml:"bot" jsonschema:"description=Direct Line conversational agent"`
	Wake      WakeConfig      `yaml:"wake" jsonschema:"description=Wake phrase detection"`
	Audio     AudioConfig     `yaml:"audio" jsonschema:"description=Audio devices and clips"`
	Loop      LoopConfig      `yaml:"loop" jsonschema:"description=Conversation loop timing"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	UI        UIConfig        `yaml:"ui,omitempty"`
}

type SpeechConfig struct {
	STTProvider string `yaml:"stt_provider,omitempty" jsonschema:"enum=azure,enum=deepgram,default=azure"`
	TTSProvider string `yaml:"tts_provider,omitempty" jsonschema:"enum=azure,enum=deepgram,default=azure"`

	// Key is the speech subscription key exchanged for bearer tokens.
	Key      string `yaml:"key,omitempty"`
	TokenURL string `yaml:"token_url,omitempty" jsonschema:"format=uri"`
	STTURL   string `yaml:"stt_url,omitempty" jsonschema:"format=uri"`
	TTSURL   string `yaml:"tts_url,omitempty" jsonschema:"format=uri"`
	// TokenTTL is how long a token is shared. Zero fetches a token per call.
	TokenTTL *Duration `yaml:"token_ttl,omitempty"`

	Language     string      `yaml:"language,omitempty" jsonschema:"default=en-US"`
	Voice        VoiceConfig `yaml:"voice,omitempty"`
	OutputFormat string      `yaml:"output_format,omitempty" jsonschema:"default=riff-16khz-16bit-mono-pcm"`

	Deepgram DeepgramConfig `yaml:"deepgram,omitempty"`
}

type VoiceConfig struct {
	Name   string `yaml:"name,omitempty" jsonschema:"default=en-US-JessaRUS"`
	Gender string `yaml:"gender,omitempty" jsonschema:"enum=Female,enum=Male,default=Female"`
}

type DeepgramConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"`
	Voice  string `yaml:"voice,omitempty"`
}

type BotConfig struct {
	BaseURL string `yaml:"base_url,omitempty" jsonschema:"format=uri"`
	Secret  string `yaml:"secret,omitempty"`
	UserID  string `yaml:"user_id,omitempty"`
	// PollRetries is how many extra polls are made while no reply arrived.
	PollRetries  int      `yaml:"poll_retries,omitempty" jsonschema:"minimum=0,default=0"`
	PollInterval Duration `yaml:"poll_interval,omitempty"`
}

type WakeConfig struct {
	Phrase      string   `yaml:"phrase,omitempty" jsonschema:"default=hey ema"`
	Sensitivity *float64 `yaml:"sensitivity,omitempty" jsonschema:"minimum=0,maximum=1,default=0.55"`
}

type AudioConfig struct {
	Backend     string `yaml:"backend,omitempty" jsonschema:"enum=miniaudio,enum=portaudio,default=miniaudio"`
	SampleRate  int    `yaml:"sample_rate,omitempty" jsonschema:"default=16000"`
	BufferSize  int    `yaml:"buffer_size,omitempty" jsonschema:"default=1024"`
	WelcomeClip string `yaml:"welcome_clip,omitempty"`
	ClipsDir    string `yaml:"clips_dir,omitempty"`
}

type LoopConfig struct {
	StepTimeout    Duration `yaml:"step_timeout,omitempty"`
	HTTPTimeout    Duration `yaml:"http_timeout,omitempty"`
	WakeRetryDelay Duration `yaml:"wake_retry_delay,omitempty"`
}

type TelemetryConfig struct {
	LogFile      string `yaml:"log_file,omitempty"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" jsonschema:"example=:9464"`
}

type UIConfig struct {
	TUI bool `yaml:"tui,omitempty"`
}

// Load reads path (optional), applies .env and environment overrides, fills
// defaults and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown fields.
func Parse(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides secrets with environment variables that are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for env, field := range map[string]*string{
		EnvAzureSpeechKey:   &c.Speech.Key,
		EnvDirectLineSecret: &c.Bot.Secret,
		EnvDeepgramAPIKey:   &c.Speech.Deepgram.APIKey,
		EnvUserID:           &c.Bot.UserID,
	} {
		if value, ok := lookup(env); ok && value != "" {
			*field = value
		}
	}
}

func (c *Config) ApplyDefaults() {
	setDefault(&c.Speech.STTProvider, ProviderAzure)
	setDefault(&c.Speech.TTSProvider, ProviderAzure)
	setDefault(&c.Speech.TokenURL, defaultTokenURL)
	setDefault(&c.Speech.STTURL, defaultSTTURL)
	setDefault(&c.Speech.TTSURL, defaultTTSURL)
	setDefault(&c.Speech.Language, defaultLanguage)
	setDefault(&c.Speech.Voice.Name, defaultVoiceName)
	setDefault(&c.Speech.Voice.Gender, defaultVoiceGender)
	setDefault(&c.Speech.OutputFormat, defaultOutputFormat)
	if c.Speech.TokenTTL == nil {
		c.Speech.TokenTTL = utils.Ptr(Duration(defaultTokenTTL))
	}

	setDefault(&c.Bot.BaseURL, defaultBotURL)
	setDefault(&c.Bot.PollInterval, Duration(defaultPollInterval))

	setDefault(&c.Wake.Phrase, defaultWakePhrase)
	if c.Wake.Sensitivity == nil {
		c.Wake.Sensitivity = utils.Ptr(defaultSensitivity)
	}

	setDefault(&c.Audio.Backend, BackendMiniaudio)
	setDefault(&c.Audio.SampleRate, defaultSampleRate)
	setDefault(&c.Audio.BufferSize, defaultBufferSize)

	setDefault(&c.Loop.StepTimeout, Duration(defaultStepTimeout))
	setDefault(&c.Loop.HTTPTimeout, Duration(defaultHTTPTimeout))
	setDefault(&c.Loop.WakeRetryDelay, Duration(defaultWakeRetryDelay))
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// TokenTTL returns the token sharing window.
func (c *Config) TokenTTL() time.Duration {
	return utils.ValueOr(c.Speech.TokenTTL, Duration(defaultTokenTTL)).Std()
}

func (c *Config) WakeSensitivity() float64 {
	return utils.ValueOr(c.Wake.Sensitivity, defaultSensitivity)
}

// UsesProvider reports whether STT or TTS is served by provider.
func (c *Config) UsesProvider(provider string) bool {
	return c.Speech.STTProvider == provider || c.Speech.TTSProvider == provider
}

func (c *Config) Validate() error {
	var errs []error
	for _, provider := range []struct{ name, value string }{
		{"speech.stt_provider", c.Speech.STTProvider},
		{"speech.tts_provider", c.Speech.TTSProvider},
	} {
		if provider.value != ProviderAzure && provider.value != ProviderDeepgram {
			errs = append(errs, fmt.Errorf("%s: unknown provider %q", provider.name, provider.value))
		}
	}
	if c.UsesProvider(ProviderAzure) && c.Speech.Key == "" {
		errs = append(errs, fmt.Errorf("speech.key is required (or set %s)", EnvAzureSpeechKey))
	}
	if c.UsesProvider(ProviderDeepgram) && c.Speech.Deepgram.APIKey == "" {
		errs = append(errs, fmt.Errorf("speech.deepgram.api_key is required (or set %s)", EnvDeepgramAPIKey))
	}
	if c.Bot.Secret == "" {
		errs = append(errs, fmt.Errorf("bot.secret is required (or set %s)", EnvDirectLineSecret))
	}
	if c.Bot.PollRetries < 0 {
		errs = append(errs, fmt.Errorf("bot.poll_retries must not be negative"))
	}
	if s := c.WakeSensitivity(); s < 0 || s > 1 {
		errs = append(errs, fmt.Errorf("wake.sensitivity must be within [0, 1], got %v", s))
	}
	if c.Audio.Backend != BackendMiniaudio && c.Audio.Backend != BackendPortaudio {
		errs = append(errs, fmt.Errorf("audio.backend: unknown backend %q", c.Audio.Backend))
	}
	if c.TokenTTL() < 0 {
		errs = append(errs, fmt.Errorf("speech.token_ttl must not be negative"))
	}
	return errors.Join(errs...)
}
