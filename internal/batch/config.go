// Package batch audits many transcripts concurrently with a bounded worker pool.
package batch

// Config defines the batch runner configuration.
type Config struct {
	// MaxWorkers is the maximum number of audits in flight.
	MaxWorkers int `yaml:"max_workers"`
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() *Config {
	return &Config{MaxWorkers: 4}
}

func (c *Config) workers() int {
	if c == nil || c.MaxWorkers < 1 {
		return 1
	}
	return c.MaxWorkers
}
