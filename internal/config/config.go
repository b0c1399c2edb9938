package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/clipnetic/clipnetic/internal/domain/cropplan"
	"github.com/clipnetic/clipnetic/internal/domain/moments"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/openrouter"
	"github.com/clipnetic/clipnetic/internal/ports/adapters/s3store"
)

const EnvPrefix = "CLIPNETIC"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Selector SelectorConfig `mapstructure:"selector"`
	Crop     CropConfig     `mapstructure:"crop"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// MaxInFlight caps concurrently running requests; extra ones get 503.
	MaxInFlight int `mapstructure:"max_inflight"`
}

// AuthConfig accepts a static bearer token, an HS256 JWT signed with
// JWTSecret, or both.
type AuthConfig struct {
	Token     string `mapstructure:"token"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	// WebhookToken is sent as the bearer token on completion callbacks.
	WebhookToken string `mapstructure:"webhook_token"`
}

type StorageConfig struct {
	// Backend is "s3" or "local".
	Backend   string `mapstructure:"backend"`
	LocalRoot string `mapstructure:"local_root"`

	s3store.Config `mapstructure:",squash"`
}

type ToolsConfig struct {
	FFmpeg         string   `mapstructure:"ffmpeg"`
	FFprobe        string   `mapstructure:"ffprobe"`
	FontsDir       string   `mapstructure:"fonts_dir"`
	WhisperBin     string   `mapstructure:"whisper_bin"`
	WhisperModel   string   `mapstructure:"whisper_model"`
	WhisperThreads int      `mapstructure:"whisper_threads"`
	TrackerBin     string   `mapstructure:"tracker_bin"`
	TrackerArgs    []string `mapstructure:"tracker_args"`
	// KillGrace is how long a canceled tool gets between SIGTERM and SIGKILL.
	KillGrace time.Duration `mapstructure:"kill_grace"`
}

type LLMConfig struct {
	APIKey       string   `mapstructure:"api_key"`
	Model        string   `mapstructure:"model"`
	BaseURL      string   `mapstructure:"base_url"`
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

type SelectorConfig struct {
	MinSec   float64 `mapstructure:"min_sec"`
	MaxSec   float64 `mapstructure:"max_sec"`
	MaxClips int     `mapstructure:"max_clips"`
}

func (s SelectorConfig) Moments() moments.Config {
	return moments.Config{MinSec: s.MinSec, MaxSec: s.MaxSec, MaxClips: s.MaxClips}
}

type CropConfig struct {
	MinScore        float64 `mapstructure:"min_score"`
	MaxOcclusionGap int     `mapstructure:"max_occlusion_gap"`
	SmoothRadius    int     `mapstructure:"smooth_radius"`
	ZoomRadius      int     `mapstructure:"zoom_radius"`
	FacePadding     float64 `mapstructure:"face_padding"`
	OutputWidth     int     `mapstructure:"output_width"`
	OutputHeight    int     `mapstructure:"output_height"`
}

func (c CropConfig) Planner() cropplan.Config {
	return cropplan.Config{
		MinScore:        c.MinScore,
		MaxOcclusionGap: c.MaxOcclusionGap,
		SmoothRadius:    c.SmoothRadius,
		ZoomRadius:      c.ZoomRadius,
		FacePadding:     c.FacePadding,
		TargetW:         c.OutputWidth,
		TargetH:         c.OutputHeight,
	}
}

type PipelineConfig struct {
	WorkDir string `mapstructure:"work_dir"`
	// RequestBudget bounds one request end to end, background jobs included.
	RequestBudget   time.Duration `mapstructure:"request_budget"`
	ClipConcurrency int           `mapstructure:"clip_concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps config keys to the env names older deployments used.
var legacyEnv = map[string]string{
	"llm.api_key":       "OPENROUTER_API_KEY",
	"llm.model":         "OPENROUTER_MODEL",
	"llm.base_url":      "OPENROUTER_BASE_URL",
	"llm.allowed_hosts": "OPENROUTER_ALLOWED_HOSTS",
	"storage.region":    "AWS_REGION",
	"storage.bucket":    "S3_BUCKET_NAME",
	"auth.token":        "PROCESS_VIDEO_ENDPOINT_AUTH",
}

func setDefaults(v *viper.Viper) {
	sel := moments.DefaultConfig()
	crop := cropplan.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_inflight", 1)

	v.SetDefault("auth.token", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.webhook_token", "")

	v.SetDefault("storage.backend", "s3")
	v.SetDefault("storage.local_root", "./data")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", s3store.DefaultRegion)
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.force_path_style", false)

	v.SetDefault("tools.ffmpeg", "ffmpeg")
	v.SetDefault("tools.ffprobe", "ffprobe")
	v.SetDefault("tools.fonts_dir", "")
	v.SetDefault("tools.whisper_bin", "whisper-cli")
	v.SetDefault("tools.whisper_model", "")
	v.SetDefault("tools.whisper_threads", 0)
	v.SetDefault("tools.tracker_bin", "")
	v.SetDefault("tools.tracker_args", []string{"--video", "{video}", "--audio", "{audio}", "--out", "{out}"})
	v.SetDefault("tools.kill_grace", 5*time.Second)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "https://openrouter.ai")
	v.SetDefault("llm.allowed_hosts", []string{})

	v.SetDefault("selector.min_sec", sel.MinSec)
	v.SetDefault("selector.max_sec", sel.MaxSec)
	v.SetDefault("selector.max_clips", sel.MaxClips)

	v.SetDefault("crop.min_score", crop.MinScore)
	v.SetDefault("crop.max_occlusion_gap", crop.MaxOcclusionGap)
	v.SetDefault("crop.smooth_radius", crop.SmoothRadius)
	v.SetDefault("crop.zoom_radius", crop.ZoomRadius)
	v.SetDefault("crop.face_padding", crop.FacePadding)
	v.SetDefault("crop.output_width", crop.TargetW)
	v.SetDefault("crop.output_height", crop.TargetH)

	v.SetDefault("pipeline.work_dir", os.TempDir())
	v.SetDefault("pipeline.request_budget", 15*time.Minute)
	v.SetDefault("pipeline.clip_concurrency", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

type loadOptions struct {
	configFile string
	envFiles   []string
}

type Option func(*loadOptions)

// WithConfigFile uses path instead of searching for config.yml.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFiles loads these dotenv files instead of ./.env.
func WithEnvFiles(paths ...string) Option {
	return func(o *loadOptions) { o.envFiles = paths }
}

// Load reads defaults, then the YAML file, then the environment. Dotenv files
// are best effort and never override variables that are already set.
func Load(opts ...Option) (Config, error) {
	o := loadOptions{envFiles: []string{".env"}}
	for _, fn := range opts {
		fn(&o)
	}
	for _, f := range o.envFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	setDefaults(v)

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", o.configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return Config{}, fmt.Errorf("config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// the prefixed name wins over the legacy one
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Validate checks what every entry point needs. ValidateServe adds the
// checks only the HTTP server needs.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "s3":
		s3 := c.Storage.Config
		s3.ApplyDefaults()
		if err := s3.Validate(); err != nil {
			return fmt.Errorf("config: storage: %w", err)
		}
	case "local":
		if c.Storage.LocalRoot == "" {
			return errors.New("config: storage.local_root is required for the local backend")
		}
	default:
		return fmt.Errorf("config: storage.backend must be s3 or local (got %q)", c.Storage.Backend)
	}

	if c.Tools.WhisperModel == "" {
		return errors.New("config: tools.whisper_model is required")
	}
	if c.Tools.TrackerBin == "" {
		return errors.New("config: tools.tracker_bin is required")
	}
	if c.Selector.MinSec <= 0 || c.Selector.MaxSec <= 0 {
		return errors.New("config: selector bounds must be > 0")
	}
	if c.Selector.MinSec > c.Selector.MaxSec {
		return errors.New("config: selector.min_sec must be <= selector.max_sec")
	}
	if c.Selector.MaxClips <= 0 {
		return errors.New("config: selector.max_clips must be > 0")
	}
	if c.Crop.OutputWidth <= 0 || c.Crop.OutputHeight <= 0 {
		return errors.New("config: crop output size must be > 0")
	}
	if c.Crop.OutputWidth%2 != 0 || c.Crop.OutputHeight%2 != 0 {
		return errors.New("config: crop output size must be even")
	}
	if c.Pipeline.ClipConcurrency < 1 {
		return errors.New("config: pipeline.clip_concurrency must be >= 1")
	}
	if c.Pipeline.RequestBudget <= 0 {
		return errors.New("config: pipeline.request_budget must be > 0")
	}
	if c.LLM.APIKey == "" {
		return errors.New("config: llm.api_key is required")
	}
	if err := openrouter.ValidateBaseURL(c.LLM.BaseURL, c.LLM.AllowedHosts); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.Token == "" && c.Auth.JWTSecret == "" {
		return errors.New("config: auth.token or auth.jwt_secret is required")
	}
	if c.Server.MaxInFlight < 1 {
		return errors.New("config: server.max_inflight must be >= 1")
	}
	return nil
}
