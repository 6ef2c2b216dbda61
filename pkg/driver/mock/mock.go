// Package mock provides a mock snapshot provider for testing without
// a real browser or device driver.
package mock

import (
	"context"
	"time"

	"github.com/devicelab-dev/selfheal/pkg/snapshot"
)

// Provider is a mock implementation of snapshot.Provider.
type Provider struct {
	// Configuration
	Config Config

	// Internal state
	callCount int
}

// Config configures mock provider behavior.
type Config struct {
	// Snapshots are served in order; the last one repeats once the
	// script runs out.
	Snapshots []*snapshot.Snapshot
	// FailOnCall makes call N fail (1-indexed). 0 = never fail.
	FailOnCall int
	// Err is the error returned on a failing call.
	Err error
	// Delay adds artificial latency per call.
	Delay time.Duration
}

// New creates a mock provider serving the given snapshots in order.
func New(snaps ...*snapshot.Snapshot) *Provider {
	return &Provider{Config: Config{Snapshots: snaps}}
}

// NewWithConfig creates a mock provider with full scripting.
func NewWithConfig(cfg Config) *Provider {
	return &Provider{Config: cfg}
}

// Snapshot implements snapshot.Provider.
func (p *Provider) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	p.callCount++

	if p.Config.Delay > 0 {
		select {
		case <-time.After(p.Config.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if p.Config.FailOnCall > 0 && p.callCount == p.Config.FailOnCall {
		return nil, p.Config.Err
	}

	if len(p.Config.Snapshots) == 0 {
		return &snapshot.Snapshot{}, nil
	}
	idx := p.callCount - 1
	if idx >= len(p.Config.Snapshots) {
		idx = len(p.Config.Snapshots) - 1
	}
	return p.Config.Snapshots[idx], nil
}

// Calls returns how many snapshots have been requested.
func (p *Provider) Calls() int {
	return p.callCount
}
