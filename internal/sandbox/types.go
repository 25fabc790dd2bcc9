package sandbox

import "time"

// Config defines sandbox runtime configuration
type Config struct {
	MaxCallStackSize int
	EnableConsole    bool
}

// DefaultConfig returns sensible sandbox defaults
func DefaultConfig() Config {
	return Config{
		MaxCallStackSize: 1024,
		EnableConsole:    true,
	}
}

// LogEntry records one console call made by the script
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Output carries the script's result value and its captured console log
type Output struct {
	Value   any        `json:"value"`
	Console []LogEntry `json:"console"`
}
