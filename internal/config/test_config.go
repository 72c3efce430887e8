package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:    ":memory:",
			Timeout: 1 * time.Second,
		},
		Explore: ExploreConfig{
			StartURL:       "/explore",
			SearchDebounce: 10 * time.Millisecond,
			FetchTimeout:   2 * time.Second,
		},
		Remote: RemoteConfig{
			Timeout:           2 * time.Second,
			RequestsPerSecond: 0,
		},
		Import: ImportConfig{
			HTTPTimeout:       5 * time.Second,
			RefreshInterval:   1 * time.Minute,
			DefaultRetryAfter: 5 * time.Minute,
			UserAgent:         "przepisy-test/1.0",
			Concurrency:       2,
			AuthorID:          "importer",
		},
		UI:    defaultConfig().UI,
		Media: defaultConfig().Media,
		Keys:  defaultConfig().Keys,
		Log:   LogConfig{Level: "off"},
	}
}
