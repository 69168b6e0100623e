// Package config loads and validates the server's static settings: an HCL
// file for room/bot defaults layered under environment variable overrides
// (KV_URL, CORS_ORIGINS, MAX_ROOMS, BOT_DEADLINE_MS, TURN_DURATION_S,
// DISCONNECT_GRACE_S, ROOM_IDLE_EVICT_MIN). BALOOT_ENV and JWT_SECRET are
// not read by this package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ServerConfig is the complete server configuration.
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Rooms  []RoomPreset   `hcl:"room,block"`
	Bots   []BotPreset    `hcl:"bot,block"`
}

// ServerSettings holds server-level HCL-configurable defaults.
type ServerSettings struct {
	Address          string `hcl:"address,optional"`
	Port             int    `hcl:"port,optional"`
	LogLevel         string `hcl:"log_level,optional"`
	MaxRooms         int    `hcl:"max_rooms,optional"`
	BotDeadlineMS    int    `hcl:"bot_deadline_ms,optional"`
	TurnDurationS    int    `hcl:"turn_duration_s,optional"`
	DisconnectGraceS int    `hcl:"disconnect_grace_s,optional"`
	RoomIdleEvictMin int    `hcl:"room_idle_evict_min,optional"`
	KVURL            string `hcl:"kv_url,optional"`
	CORSOrigins      string `hcl:"cors_origins,optional"`
}

// RoomPreset is a named room/table configuration preset (table stakes have
// no analogue in Baloot, so this only carries seat and variant defaults).
type RoomPreset struct {
	Name        string `hcl:"name,label"`
	StrictMode  bool   `hcl:"strict_mode,optional"`
	SoundEnable bool   `hcl:"sound_enabled,optional"`
}

// BotPreset is a named bot-difficulty preset assignable to rooms.
type BotPreset struct {
	Name       string   `hcl:"name,label"`
	Difficulty string   `hcl:"difficulty,optional"`
	Rooms      []string `hcl:"rooms,optional"`
}

// Default returns the built-in configuration used when no HCL file is
// supplied, matching spec §6's documented defaults.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:          "0.0.0.0",
			Port:             8080,
			LogLevel:         "info",
			MaxRooms:         500,
			BotDeadlineMS:    3000,
			TurnDurationS:    30,
			DisconnectGraceS: 60,
			RoomIdleEvictMin: 30,
		},
		Rooms: []RoomPreset{{Name: "default", StrictMode: true, SoundEnable: true}},
		Bots:  []BotPreset{{Name: "default", Difficulty: "medium"}},
	}
}

// Load reads an HCL configuration file, falling back to Default() when
// filename does not exist, then layers environment variable overrides on
// top (env wins over file, matching the teacher's file-then-default
// layering but inverted: env is the more specific, more operational
// surface per spec §6).
func Load(filename string) (*ServerConfig, error) {
	cfg := Default()

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			parser := hclparse.NewParser()
			file, diags := parser.ParseHCLFile(filename)
			if diags.HasErrors() {
				return nil, fmt.Errorf("parse HCL file %s: %s", filename, diags.Error())
			}

			var fileCfg ServerConfig
			diags = gohcl.DecodeBody(file.Body, nil, &fileCfg)
			if diags.HasErrors() {
				return nil, fmt.Errorf("decode HCL file %s: %s", filename, diags.Error())
			}
			mergeFileConfig(cfg, &fileCfg)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func mergeFileConfig(base, file *ServerConfig) {
	if file.Server.Address != "" {
		base.Server.Address = file.Server.Address
	}
	if file.Server.Port != 0 {
		base.Server.Port = file.Server.Port
	}
	if file.Server.LogLevel != "" {
		base.Server.LogLevel = file.Server.LogLevel
	}
	if file.Server.MaxRooms != 0 {
		base.Server.MaxRooms = file.Server.MaxRooms
	}
	if file.Server.BotDeadlineMS != 0 {
		base.Server.BotDeadlineMS = file.Server.BotDeadlineMS
	}
	if file.Server.TurnDurationS != 0 {
		base.Server.TurnDurationS = file.Server.TurnDurationS
	}
	if file.Server.DisconnectGraceS != 0 {
		base.Server.DisconnectGraceS = file.Server.DisconnectGraceS
	}
	if file.Server.RoomIdleEvictMin != 0 {
		base.Server.RoomIdleEvictMin = file.Server.RoomIdleEvictMin
	}
	if file.Server.KVURL != "" {
		base.Server.KVURL = file.Server.KVURL
	}
	if file.Server.CORSOrigins != "" {
		base.Server.CORSOrigins = file.Server.CORSOrigins
	}
	if len(file.Rooms) > 0 {
		base.Rooms = file.Rooms
	}
	if len(file.Bots) > 0 {
		base.Bots = file.Bots
	}
}

func applyEnvOverrides(cfg *ServerConfig) {
	if v := os.Getenv("KV_URL"); v != "" {
		cfg.Server.KVURL = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = v
	}
	if v, ok := envInt("MAX_ROOMS"); ok {
		cfg.Server.MaxRooms = v
	}
	if v, ok := envInt("BOT_DEADLINE_MS"); ok {
		cfg.Server.BotDeadlineMS = v
	}
	if v, ok := envInt("TURN_DURATION_S"); ok {
		cfg.Server.TurnDurationS = v
	}
	if v, ok := envInt("DISCONNECT_GRACE_S"); ok {
		cfg.Server.DisconnectGraceS = v
	}
	if v, ok := envInt("ROOM_IDLE_EVICT_MIN"); ok {
		cfg.Server.RoomIdleEvictMin = v
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for internal consistency.
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.MaxRooms < 1 {
		return fmt.Errorf("max_rooms must be positive, got %d", c.Server.MaxRooms)
	}
	if c.Server.BotDeadlineMS < 1 {
		return fmt.Errorf("bot_deadline_ms must be positive, got %d", c.Server.BotDeadlineMS)
	}
	if c.Server.TurnDurationS < 1 {
		return fmt.Errorf("turn_duration_s must be positive, got %d", c.Server.TurnDurationS)
	}
	if c.Server.DisconnectGraceS < 1 {
		return fmt.Errorf("disconnect_grace_s must be positive, got %d", c.Server.DisconnectGraceS)
	}

	validDifficulties := map[string]bool{"easy": true, "medium": true, "hard": true}
	for _, bot := range c.Bots {
		if !validDifficulties[bot.Difficulty] {
			return fmt.Errorf("bot %s: invalid difficulty %q", bot.Name, bot.Difficulty)
		}
	}

	return nil
}

// Address returns the full listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// BotDeadline returns the bot decision deadline as a time.Duration.
func (c *ServerConfig) BotDeadline() time.Duration {
	return time.Duration(c.Server.BotDeadlineMS) * time.Millisecond
}

// TurnDuration returns the per-seat turn timeout as a time.Duration.
func (c *ServerConfig) TurnDuration() time.Duration {
	return time.Duration(c.Server.TurnDurationS) * time.Second
}

// DisconnectGrace returns the reconnect grace window as a time.Duration.
func (c *ServerConfig) DisconnectGrace() time.Duration {
	return time.Duration(c.Server.DisconnectGraceS) * time.Second
}

// RoomIdleEvict returns the room idle-eviction threshold as a time.Duration.
func (c *ServerConfig) RoomIdleEvict() time.Duration {
	return time.Duration(c.Server.RoomIdleEvictMin) * time.Minute
}
