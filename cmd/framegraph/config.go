package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the optional host configuration file, layered under
// command-line flags: flags always win when both are set.
type Config struct {
	Engine EngineConfig `toml:"engine"`
	Mux    MuxConfig    `toml:"mux"`
}

// EngineConfig controls the frame-graph Core's resource limits.
type EngineConfig struct {
	Threads       int   `toml:"threads"`
	MaxCacheBytes int64 `toml:"max_cache_bytes"`
}

// MuxConfig controls the AVI v2 muxer's OpenDML switches.
type MuxConfig struct {
	VidFcc        string `toml:"vid_fcc"`
	NoInterleave  bool   `toml:"no_interleave"`
	SmallSegments bool   `toml:"small_segments"`
}

func defaultConfig() Config {
	return Config{
		Engine: EngineConfig{Threads: 1},
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
