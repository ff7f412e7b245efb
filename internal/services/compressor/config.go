// internal/services/compressor/config.go
package compressor

import "time"

type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	BatchSize   int
	BatchPause  time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Temperature: 0.2,
		MaxTokens:   100,
		Timeout:     30 * time.Second,
		BatchSize:   5,
		BatchPause:  500 * time.Millisecond,
	}
}
