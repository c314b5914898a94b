// Package loadcheck drives concurrent visits against a running clickrank
// server and checks that no click was lost or double counted.
package loadcheck

import (
	"errors"
	"time"
)

// Defaults.
const (
	DefaultBaseURL    = "http://localhost:3000"
	DefaultVisits     = 1000
	DefaultTimeout    = 10 * time.Second
	DefaultCookieName = "cid"

	workerChannelMultiplier = 2
	percentageMultiplier    = 100
)

// Error constants.
var (
	ErrInvalidConfig = errors.New("invalid load check config")
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrCountMismatch = errors.New("counter delta does not match successful visits")
	ErrScoreMismatch = errors.New("visitor score is not 1")
)

// Config holds configuration for a load check run.
type Config struct {
	BaseURL    string        // Base URL including any base path
	HealthURL  string        // Health endpoint; empty skips the check
	Visits     int           // Number of fresh visitors, one click each
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	CookieName string        // Identity cookie name
	Verbose    bool          // Log every failed visit
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is required"))
	case c.Visits < 1:
		return errors.Join(ErrInvalidConfig, errors.New("visits must be positive"))
	case c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	case c.Timeout <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("timeout must be positive"))
	}
	return nil
}

func (c *Config) cookieName() string {
	if c.CookieName == "" {
		return DefaultCookieName
	}
	return c.CookieName
}

// Visit is the outcome of one fresh visitor clicking once.
type Visit struct {
	ID    string
	Count int64
	Err   error
}

// Stats holds run statistics.
type Stats struct {
	CountBefore    int64
	CountAfter     int64
	VisitsSent     int
	VisitsOK       int
	VisitsFailed   int
	ScoresChecked  int
	ScoresMismatch int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
