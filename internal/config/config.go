package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Explore  ExploreConfig  `mapstructure:"explore"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Session  SessionConfig  `mapstructure:"session"`
	Import   ImportConfig   `mapstructure:"import"`
	UI       UIConfig       `mapstructure:"ui"`
	Media    MediaConfig    `mapstructure:"media"`
	Keys     KeyConfig      `mapstructure:"keys"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

// ExploreConfig tunes the recipe explorer controller and its input handling.
type ExploreConfig struct {
	// StartURL is the address used when no --url flag is given.
	StartURL       string        `mapstructure:"start_url"`
	SearchDebounce time.Duration `mapstructure:"search_debounce"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	// OffsetPaging switches continuation to legacy page numbers.
	OffsetPaging bool `mapstructure:"offset_paging"`
}

// RemoteConfig points the explorer at another instance's `serve` API.
// An empty BaseURL means the local database is used.
type RemoteConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type SessionConfig struct {
	UserID string `mapstructure:"user_id"`
	Token  string `mapstructure:"token"`
	Secret string `mapstructure:"secret"`
}

type ImportConfig struct {
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	DefaultRetryAfter time.Duration `mapstructure:"default_retry_after"`
	UserAgent         string        `mapstructure:"user_agent"`
	Concurrency       int           `mapstructure:"concurrency"`
	// AuthorID is stamped on imported recipes; falls back to session.user_id.
	AuthorID string `mapstructure:"author_id"`
	// PruneMissing drops recipes a refreshed feed no longer lists. Off by
	// default since most feeds only carry their latest posts.
	PruneMissing bool `mapstructure:"prune_missing"`
}

type UIConfig struct {
	Colors UIColors     `mapstructure:"colors"`
	Recipe RecipeConfig `mapstructure:"recipe"`
}

type UIColors struct {
	Primary    string `mapstructure:"primary"`
	Secondary  string `mapstructure:"secondary"`
	Accent     string `mapstructure:"accent"`
	Background string `mapstructure:"background"`
	Surface    string `mapstructure:"surface"`
	Text       string `mapstructure:"text"`
	Muted      string `mapstructure:"muted"`
	Error      string `mapstructure:"error"`
	Success    string `mapstructure:"success"`
}

type RecipeConfig struct {
	WordWrapMaxWidth int `mapstructure:"word_wrap_max_width"`
	WordWrapMinWidth int `mapstructure:"word_wrap_min_width"`
}

type MediaConfig struct {
	Darwin        MediaPlayers `mapstructure:"darwin"`
	Linux         MediaPlayers `mapstructure:"linux"`
	Windows       MediaPlayers `mapstructure:"windows"`
	DefaultOpener string       `mapstructure:"default_opener"`
}

type MediaPlayers struct {
	Image   []string `mapstructure:"image"`
	Browser []string `mapstructure:"browser"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings"`
}

type KeyBindings struct {
	Quit      string `mapstructure:"quit"`
	Search    string `mapstructure:"search"`
	LoadMore  string `mapstructure:"load_more"`
	Retry     string `mapstructure:"retry"`
	Sort      string `mapstructure:"sort"`
	PageSize  string `mapstructure:"page_size"`
	OpenMedia string `mapstructure:"open_media"`
	Back      string `mapstructure:"back"`
	Help      string `mapstructure:"help"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".przepisy")

	return &Config{
		Database: DatabaseConfig{
			Path:        filepath.Join(dataDir, "przepisy.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(dataDir, "index.bleve"),
		},
		Explore: ExploreConfig{
			StartURL:       "/explore",
			SearchDebounce: 300 * time.Millisecond,
			FetchTimeout:   10 * time.Second,
		},
		Remote: RemoteConfig{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
		},
		Import: ImportConfig{
			HTTPTimeout:       30 * time.Second,
			RefreshInterval:   30 * time.Minute,
			DefaultRetryAfter: 15 * time.Minute,
			UserAgent:         "przepisy/1.0 (https://github.com/pders01/przepisy)",
			Concurrency:       4,
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:    "#E07A5F",
				Secondary:  "#81B29A",
				Accent:     "#F2CC8F",
				Background: "#1F1B24",
				Surface:    "#3D405B",
				Text:       "#F4F1DE",
				Muted:      "#9A8C98",
				Error:      "#F87171",
				Success:    "#4ADE80",
			},
			Recipe: RecipeConfig{
				WordWrapMaxWidth: 100,
				WordWrapMinWidth: 40,
			},
		},
		Media: MediaConfig{
			Darwin: MediaPlayers{
				Image:   []string{"preview", "open"},
				Browser: []string{"open"},
			},
			Linux: MediaPlayers{
				Image:   []string{"feh", "eog", "xdg-open"},
				Browser: []string{"xdg-open", "firefox"},
			},
			Windows: MediaPlayers{
				Image:   []string{"start"},
				Browser: []string{"start"},
			},
			DefaultOpener: getDefaultOpener(),
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:      "q",
				Search:    "/",
				LoadMore:  "l",
				Retry:     "r",
				Sort:      "t",
				PageSize:  "p",
				OpenMedia: "o",
				Back:      "esc",
				Help:      "?",
			},
		},
		Log: LogConfig{
			Level: "off",
			File:  filepath.Join(dataDir, "przepisy.log"),
		},
	}
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "start"
	default:
		return "open"
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("database", cfg.Database)
	v.SetDefault("explore", cfg.Explore)
	v.SetDefault("remote", cfg.Remote)
	v.SetDefault("session", cfg.Session)
	v.SetDefault("import", cfg.Import)
	v.SetDefault("ui", cfg.UI)
	v.SetDefault("media", cfg.Media)
	v.SetDefault("keys", cfg.Keys)
	v.SetDefault("log", cfg.Log)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "przepisy")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PRZEPISY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Sections only partly present in the file keep the remaining defaults;
	// lists from the file replace the default lists.
	config := *cfg
	if err := v.Unmarshal(&config, func(dc *mapstructure.DecoderConfig) {
		dc.ZeroFields = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(&config)

	return &config, nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// ExpandPath is the exported form used for flag overrides.
func ExpandPath(path string) string {
	return expandPath(path)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations as strings for TOML readability
	dbCfg := map[string]interface{}{
		"path":         config.Database.Path,
		"timeout":      config.Database.Timeout.String(),
		"search_index": config.Database.SearchIndex,
	}

	exploreCfg := map[string]interface{}{
		"start_url":       config.Explore.StartURL,
		"search_debounce": config.Explore.SearchDebounce.String(),
		"fetch_timeout":   config.Explore.FetchTimeout.String(),
		"offset_paging":   config.Explore.OffsetPaging,
	}

	remoteCfg := map[string]interface{}{
		"base_url":            config.Remote.BaseURL,
		"timeout":             config.Remote.Timeout.String(),
		"requests_per_second": config.Remote.RequestsPerSecond,
	}

	importCfg := map[string]interface{}{
		"http_timeout":        config.Import.HTTPTimeout.String(),
		"refresh_interval":    config.Import.RefreshInterval.String(),
		"default_retry_after": config.Import.DefaultRetryAfter.String(),
		"user_agent":          config.Import.UserAgent,
		"concurrency":         config.Import.Concurrency,
		"author_id":           config.Import.AuthorID,
		"prune_missing":       config.Import.PruneMissing,
	}

	v.Set("database", dbCfg)
	v.Set("explore", exploreCfg)
	v.Set("remote", remoteCfg)
	v.Set("session", config.Session)
	v.Set("import", importCfg)
	v.Set("ui", config.UI)
	v.Set("media", config.Media)
	v.Set("keys", config.Keys)
	v.Set("log", config.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
