/*
 * This file is part of Aloud (https://github.com/aloudlabs/aloud-tts).
 * Copyright (C) 2025 Aloud Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Engine selects the speech synthesis backend.
type Engine string

const (
	// EngineEdge is the built-in Edge read-aloud backend (no credential needed).
	EngineEdge Engine = "edge"
	// EngineDeepgram is the Deepgram speak API backend.
	EngineDeepgram Engine = "deepgram"
)

// Config holds all configuration for the aloud-tts library
type Config struct {
	TTS     TTSConfig
	NATS    NATSConfig
	Logging LoggingConfig
}

// TTSConfig holds text-to-speech backend configuration.
// The host application owns this record; the library only reads it.
type TTSConfig struct {
	Engine         Engine        // Which backend to construct
	SelectedVoice  string        // Default voice for the edge backend
	CustomVoice    string        // Overrides SelectedVoice when non-blank
	DeepgramAPIKey string        // Credential for the Deepgram backend
	DeepgramModel  string        // Deepgram voice model (e.g., "aura-asteria-en")
	BaseURL        string        // Deepgram API base URL (override for proxies/tests)
	Timeout        time.Duration // Per-request HTTP timeout
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	URL           string
	SubjectPrefix string // Audio chunk subjects: <prefix>.<relay_id>
	MaxReconnect  int
	ReconnectWait time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		TTS: TTSConfig{
			Engine:         Engine(getEnvString("ALOUD_TTS_ENGINE", string(EngineEdge))),
			SelectedVoice:  getEnvString("ALOUD_TTS_VOICE", "en-US-AriaNeural"),
			CustomVoice:    getEnvString("ALOUD_TTS_CUSTOM_VOICE", ""),
			DeepgramAPIKey: getEnvString("DEEPGRAM_API_KEY", ""),
			DeepgramModel:  getEnvString("DEEPGRAM_MODEL", "aura-asteria-en"),
			BaseURL:        getEnvString("DEEPGRAM_BASE_URL", "https://api.deepgram.com"),
			Timeout:        getEnvDuration("ALOUD_TTS_TIMEOUT", 60*time.Second),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnvString("NATS_SUBJECT_PREFIX", "aloud.audio"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	switch c.TTS.Engine {
	case EngineEdge, EngineDeepgram:
	default:
		return fmt.Errorf("unknown TTS engine: %q", c.TTS.Engine)
	}

	if c.TTS.Timeout <= 0 {
		return fmt.Errorf("TTS timeout must be positive: %v", c.TTS.Timeout)
	}

	if c.TTS.BaseURL == "" {
		return fmt.Errorf("Deepgram base URL must be provided")
	}

	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("NATS subject prefix must be provided")
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
