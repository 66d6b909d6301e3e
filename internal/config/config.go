// Package config provides configuration management for the Aura Clip agent.
// Defaults are overridden by an optional YAML config file, then by
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort        = 8686
	DefaultLogLevel    = "info"
	DefaultDataDir     = ".auraclip"
	DefaultThreshold   = 0.27
	DefaultMinSceneLen = 0.5
	DefaultVideoCodec  = "libx264"
	DefaultAudioCodec  = "aac"
	DefaultCRF         = 23
	DefaultMinClipLen  = 0.05
	DefaultWatchSettle = 2 * time.Second

	// Environment variable names
	EnvPort         = "AURACLIP_PORT"
	EnvLogLevel     = "AURACLIP_LOG_LEVEL"
	EnvDataDir      = "AURACLIP_DATA_DIR"
	EnvConfigFile   = "AURACLIP_CONFIG"
	EnvFFmpeg       = "AURACLIP_FFMPEG"
	EnvFFprobe      = "AURACLIP_FFPROBE"
	EnvHeadless     = "AURACLIP_HEADLESS"
	EnvPublishURL   = "AURACLIP_PUBLISH_URL"
	EnvPublishToken = "AURACLIP_PUBLISH_TOKEN"

	// Database filename
	DBFilename = "auraclip.db"

	// Tool timeouts in seconds
	DefaultTimeoutDoctor = 30
	DefaultTimeoutProbe  = 30
	DefaultTimeoutDetect = 600  // 10 minutes
	DefaultTimeoutExport = 1800 // 30 minutes, per clip
	DefaultTimeoutThumb  = 60
)

// Config is the read-only view of agent settings handed to subsystems
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	CacheDir() string
	ThumbsDir() string
	ExportsDir() string
	FFmpegPath() string
	FFprobePath() string
	SceneThreshold() float64
	MinSceneLen() float64
	VideoCodec() string
	AudioCodec() string
	CRF() int
	MinClipLen() float64
	TimeoutDoctor() time.Duration
	TimeoutProbe() time.Duration
	TimeoutDetect() time.Duration
	TimeoutExport() time.Duration
	TimeoutThumb() time.Duration
	WatchSettle() time.Duration
	PublishEnabled() bool
	PublishURL() string
	PublishToken() string
	Headless() bool
}

// FileConfig is the YAML shape of the optional config file.
type FileConfig struct {
	Port       int    `yaml:"port"`
	LogLevel   string `yaml:"log_level"`
	DataDir    string `yaml:"data_dir"`
	ExportsDir string `yaml:"exports_dir"`
	Headless   bool   `yaml:"headless"`

	Tools     ToolsConfig     `yaml:"tools"`
	Detection DetectionConfig `yaml:"detection"`
	Export    ExportConfig    `yaml:"export"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Publish   PublishConfig   `yaml:"publish"`
}

type ToolsConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

type DetectionConfig struct {
	Threshold   float64 `yaml:"threshold"`
	MinSceneLen float64 `yaml:"min_scene_len"`
}

type ExportConfig struct {
	VideoCodec string  `yaml:"video_codec"`
	AudioCodec string  `yaml:"audio_codec"`
	CRF        int     `yaml:"crf"`
	MinClipLen float64 `yaml:"min_clip_len"`
}

type WatcherConfig struct {
	SettleSeconds float64 `yaml:"settle_seconds"`
}

type PublishConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// AgentConfig holds the resolved configuration values
type AgentConfig struct {
	port       int
	logLevel   string
	dataDir    string
	exportsDir string
	headless   bool

	ffmpegPath  string
	ffprobePath string

	threshold   float64
	minSceneLen float64

	videoCodec string
	audioCodec string
	crf        int
	minClipLen float64

	watchSettle time.Duration

	publishURL   string
	publishToken string
}

// New resolves configuration from defaults, the config file and the
// environment, in that order.
func New() (*AgentConfig, error) {
	cfg := &AgentConfig{
		port:        DefaultPort,
		logLevel:    DefaultLogLevel,
		dataDir:     defaultDataDir(),
		threshold:   DefaultThreshold,
		minSceneLen: DefaultMinSceneLen,
		videoCodec:  DefaultVideoCodec,
		audioCodec:  DefaultAudioCodec,
		crf:         DefaultCRF,
		minClipLen:  DefaultMinClipLen,
		watchSettle: DefaultWatchSettle,
	}

	file, err := loadFile(os.Getenv(EnvConfigFile))
	if err != nil {
		return nil, err
	}
	if file != nil {
		cfg.applyFile(file)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.port)
	}
	if cfg.threshold <= 0 || cfg.threshold >= 1 {
		return nil, fmt.Errorf("invalid detection threshold %.3f: must be between 0 and 1", cfg.threshold)
	}
	if cfg.minSceneLen < 0 {
		return nil, fmt.Errorf("invalid min scene length %.3f: must not be negative", cfg.minSceneLen)
	}

	return cfg, nil
}

// loadFile reads the config file at path, or the first of the default
// candidate locations that exists. A missing file is not an error.
func loadFile(path string) (*FileConfig, error) {
	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file FileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &file, nil
}

func findConfigFile() string {
	candidates := []string{
		"./auraclip.yaml",
		filepath.Join(defaultDataDir(), "config.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *AgentConfig) applyFile(f *FileConfig) {
	if f.Port != 0 {
		c.port = f.Port
	}
	if f.LogLevel != "" {
		c.logLevel = f.LogLevel
	}
	if f.DataDir != "" {
		c.dataDir = f.DataDir
	}
	if f.ExportsDir != "" {
		c.exportsDir = f.ExportsDir
	}
	c.headless = f.Headless

	if f.Tools.FFmpegPath != "" {
		c.ffmpegPath = f.Tools.FFmpegPath
	}
	if f.Tools.FFprobePath != "" {
		c.ffprobePath = f.Tools.FFprobePath
	}

	if f.Detection.Threshold != 0 {
		c.threshold = f.Detection.Threshold
	}
	if f.Detection.MinSceneLen != 0 {
		c.minSceneLen = f.Detection.MinSceneLen
	}

	if f.Export.VideoCodec != "" {
		c.videoCodec = f.Export.VideoCodec
	}
	if f.Export.AudioCodec != "" {
		c.audioCodec = f.Export.AudioCodec
	}
	if f.Export.CRF != 0 {
		c.crf = f.Export.CRF
	}
	if f.Export.MinClipLen != 0 {
		c.minClipLen = f.Export.MinClipLen
	}

	if f.Watcher.SettleSeconds > 0 {
		c.watchSettle = time.Duration(f.Watcher.SettleSeconds * float64(time.Second))
	}

	if f.Publish.URL != "" {
		c.publishURL = f.Publish.URL
	}
	if f.Publish.Token != "" {
		c.publishToken = f.Publish.Token
	}
}

func (c *AgentConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		c.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		c.dataDir = dd
	}
	if fp := os.Getenv(EnvFFmpeg); fp != "" {
		c.ffmpegPath = fp
	}
	if fp := os.Getenv(EnvFFprobe); fp != "" {
		c.ffprobePath = fp
	}
	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		c.headless = headless
	}
	if u := os.Getenv(EnvPublishURL); u != "" {
		c.publishURL = u
	}
	if t := os.Getenv(EnvPublishToken); t != "" {
		c.publishToken = t
	}
	return nil
}

// Port returns the HTTP server port
func (c *AgentConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *AgentConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *AgentConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *AgentConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// CacheDir returns the cache directory path
func (c *AgentConfig) CacheDir() string {
	return filepath.Join(c.dataDir, "cache")
}

// ThumbsDir returns the scene thumbnail directory path
func (c *AgentConfig) ThumbsDir() string {
	return filepath.Join(c.CacheDir(), "thumbs")
}

// ExportsDir returns the default clip output directory
func (c *AgentConfig) ExportsDir() string {
	if c.exportsDir != "" {
		return c.exportsDir
	}
	return filepath.Join(c.dataDir, "exports")
}

// FFmpegPath returns the configured ffmpeg binary path, empty meaning
// resolve from PATH
func (c *AgentConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// FFprobePath returns the configured ffprobe binary path, empty meaning
// resolve from PATH
func (c *AgentConfig) FFprobePath() string {
	return c.ffprobePath
}

// SceneThreshold returns the default scene-change score threshold
func (c *AgentConfig) SceneThreshold() float64 {
	return c.threshold
}

// MinSceneLen returns the minimum scene length in seconds; cut points
// closer than this to the previous boundary are merged
func (c *AgentConfig) MinSceneLen() float64 {
	return c.minSceneLen
}

// VideoCodec returns the default clip video codec
func (c *AgentConfig) VideoCodec() string {
	return c.videoCodec
}

// AudioCodec returns the default clip audio codec
func (c *AgentConfig) AudioCodec() string {
	return c.audioCodec
}

// CRF returns the default constant rate factor for clip encoding
func (c *AgentConfig) CRF() int {
	return c.crf
}

// MinClipLen returns the minimum exportable segment length in seconds
func (c *AgentConfig) MinClipLen() float64 {
	return c.minClipLen
}

func (c *AgentConfig) TimeoutDoctor() time.Duration {
	return time.Duration(DefaultTimeoutDoctor) * time.Second
}

func (c *AgentConfig) TimeoutProbe() time.Duration {
	return time.Duration(DefaultTimeoutProbe) * time.Second
}

func (c *AgentConfig) TimeoutDetect() time.Duration {
	return time.Duration(DefaultTimeoutDetect) * time.Second
}

func (c *AgentConfig) TimeoutExport() time.Duration {
	return time.Duration(DefaultTimeoutExport) * time.Second
}

func (c *AgentConfig) TimeoutThumb() time.Duration {
	return time.Duration(DefaultTimeoutThumb) * time.Second
}

// WatchSettle returns how long a watched file must stop growing before
// it is auto-imported
func (c *AgentConfig) WatchSettle() time.Duration {
	return c.watchSettle
}

// PublishEnabled reports whether a publish endpoint is configured
func (c *AgentConfig) PublishEnabled() bool {
	return c.publishURL != ""
}

// PublishURL returns the clip publish endpoint URL
func (c *AgentConfig) PublishURL() string {
	return c.publishURL
}

// PublishToken returns the bearer token for the publish endpoint
func (c *AgentConfig) PublishToken() string {
	return c.publishToken
}

// Headless reports whether the system tray should be skipped
func (c *AgentConfig) Headless() bool {
	return c.headless
}

// defaultDataDir resolves the per-user data directory, falling back to
// a relative path when the home directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
