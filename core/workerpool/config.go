package workerpool

import (
	"os"
	"time"
)

// Config holds configuration for the worker process pool.
type Config struct {
	// Workers is the fixed pool size: the maximum number of worker
	// processes alive at once, and therefore the maximum number of
	// concurrent decode jobs.
	Workers int `mapstructure:"workers" default:"4"`
	// JobTimeoutSeconds bounds a single extraction job. A worker that blows
	// the budget is killed and replaced.
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds" default:"120"`

	// Command is the argv used to spawn a worker. Empty means re-invoke
	// this binary with the "worker" subcommand. Tests override it.
	Command []string `mapstructure:"-"`
}

func (c Config) workers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

func (c Config) jobTimeout() time.Duration {
	if c.JobTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

func (c Config) command() []string {
	if len(c.Command) > 0 {
		return c.Command
	}
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return []string{exe, "worker"}
}
