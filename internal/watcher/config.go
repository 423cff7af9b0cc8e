package watcher

import (
	"errors"
	"time"
)

// Config controls detection, stabilization and the conversion worker pool.
type Config struct {
	InputDir       string
	QuarantineDir  string
	Debounce       time.Duration
	RescanInterval time.Duration
	Workers        int
	QueueSize      int
	ConvertTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

// DefaultConfig returns the default settings for inputDir.
func DefaultConfig(inputDir, quarantineDir string) Config {
	return Config{
		InputDir:       inputDir,
		QuarantineDir:  quarantineDir,
		Debounce:       3 * time.Second,
		RescanInterval: 30 * time.Second,
		Workers:        2,
		QueueSize:      64,
		ConvertTimeout: 5 * time.Minute,
		MaxAttempts:    3,
		BackoffBase:    time.Second,
		BackoffMax:     30 * time.Second,
	}
}

func (c Config) Validate() error {
	switch {
	case c.InputDir == "":
		return errors.New("watcher input dir is required")
	case c.QuarantineDir == "":
		return errors.New("watcher quarantine dir is required")
	case c.Debounce <= 0:
		return errors.New("watcher debounce must be positive")
	case c.RescanInterval < 0:
		return errors.New("watcher rescan interval must be >= 0")
	case c.Workers < 1:
		return errors.New("watcher workers must be >= 1")
	case c.QueueSize < 1:
		return errors.New("watcher queue size must be >= 1")
	case c.ConvertTimeout <= 0:
		return errors.New("watcher convert timeout must be positive")
	case c.MaxAttempts < 1:
		return errors.New("watcher max attempts must be >= 1")
	case c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase:
		return errors.New("watcher backoff must satisfy 0 < base <= max")
	}
	return nil
}

// backoff returns the wait before the next attempt after attempt failures.
func (c Config) backoff(attempt int) time.Duration {
	d := c.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.BackoffMax {
			return c.BackoffMax
		}
	}
	return d
}
