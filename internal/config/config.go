package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StageWeight assigns a share of overall job progress to one execution stage.
// The weights for a job kind must sum to 100.
type StageWeight struct {
	Stage  string  `yaml:"stage"`
	Weight float64 `yaml:"weight"`
}

type Config struct {
	// VideoDir is the default destination for video downloads
	VideoDir string `yaml:"video_dir"`

	// AudioDir is the default destination for audio downloads
	AudioDir string `yaml:"audio_dir"`

	// ToolsDir is where tool-install jobs unpack their archives
	ToolsDir string `yaml:"tools_dir"`

	// Workers is the number of concurrently executing jobs (default 3)
	Workers int `yaml:"workers"`

	// YTDLPPath is the path to the yt-dlp binary (default: "yt-dlp")
	YTDLPPath string `yaml:"ytdlp_path"`

	// FFmpegPath is the path to ffmpeg, handed to yt-dlp for remux/convert steps
	FFmpegPath string `yaml:"ffmpeg_path"`

	// StatePath is the sqlite file holding the restart snapshot
	// (default: config dir + downvid.db)
	StatePath string `yaml:"state_path"`

	// LogLevel controls logging verbosity: debug, info, warn, error
	LogLevel string `yaml:"log_level"`

	// DefaultContainer is used when an add request doesn't name one ("mp4" or "mkv")
	DefaultContainer string `yaml:"default_container"`

	// DefaultAudioQuality is the MP3 bitrate in kbps for audio jobs
	DefaultAudioQuality int `yaml:"default_audio_quality"`

	// InstallURL is the archive fetched by tool-install jobs
	InstallURL string `yaml:"install_url"`

	// InstallFallbackURL is tried once when the primary archive download fails
	InstallFallbackURL string `yaml:"install_fallback_url"`

	// MediaStages weights stage progress for video/audio jobs (must sum to 100)
	MediaStages []StageWeight `yaml:"media_stages"`

	// InstallStages weights stage progress for install jobs (must sum to 100)
	InstallStages []StageWeight `yaml:"install_stages"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		VideoDir:            filepath.Join("downloads", "video"),
		AudioDir:            filepath.Join("downloads", "audio"),
		ToolsDir:            filepath.Join("tools", "ffmpeg"),
		Workers:             3,
		YTDLPPath:           "yt-dlp",
		FFmpegPath:          "ffmpeg",
		LogLevel:            "info",
		DefaultContainer:    "mp4",
		DefaultAudioQuality: 320,
		InstallURL:          "https://www.gyan.dev/ffmpeg/builds/ffmpeg-release-essentials.zip",
		InstallFallbackURL:  "https://www.gyan.dev/ffmpeg/builds/ffmpeg-git-essentials.zip",
		MediaStages:         DefaultMediaStages(),
		InstallStages:       DefaultInstallStages(),
	}
}

// DefaultMediaStages is the weight table for video and audio jobs.
func DefaultMediaStages() []StageWeight {
	return []StageWeight{
		{Stage: "resolve", Weight: 5},
		{Stage: "transfer", Weight: 85},
		{Stage: "convert", Weight: 10},
	}
}

// DefaultInstallStages is the weight table for tool-install jobs.
func DefaultInstallStages() []StageWeight {
	return []StageWeight{
		{Stage: "download", Weight: 60},
		{Stage: "extract", Weight: 30},
		{Stage: "locate", Weight: 10},
	}
}

// Load reads config from a YAML file, applying defaults for missing values
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file - use defaults
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Apply defaults for empty or out-of-range values
	if cfg.VideoDir == "" {
		cfg.VideoDir = filepath.Join("downloads", "video")
	}
	if cfg.AudioDir == "" {
		cfg.AudioDir = filepath.Join("downloads", "audio")
	}
	if cfg.ToolsDir == "" {
		cfg.ToolsDir = filepath.Join("tools", "ffmpeg")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 3
	}
	if cfg.YTDLPPath == "" {
		cfg.YTDLPPath = "yt-dlp"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.DefaultContainer != "mp4" && cfg.DefaultContainer != "mkv" {
		cfg.DefaultContainer = "mp4"
	}
	if cfg.DefaultAudioQuality <= 0 {
		cfg.DefaultAudioQuality = 320
	}
	if !weightsValid(cfg.MediaStages) {
		cfg.MediaStages = DefaultMediaStages()
	}
	if !weightsValid(cfg.InstallStages) {
		cfg.InstallStages = DefaultInstallStages()
	}

	return cfg, nil
}

// Save writes the config to a YAML file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DestDir returns the default destination directory for a job kind.
func (c *Config) DestDir(kind string) string {
	switch kind {
	case "audio":
		return c.AudioDir
	case "install":
		return c.ToolsDir
	}
	return c.VideoDir
}

// weightsValid reports whether a weight table is usable: at least one stage,
// all weights positive, total exactly 100.
func weightsValid(weights []StageWeight) bool {
	if len(weights) == 0 {
		return false
	}
	var sum float64
	for _, w := range weights {
		if w.Stage == "" || w.Weight <= 0 {
			return false
		}
		sum += w.Weight
	}
	return sum == 100
}
