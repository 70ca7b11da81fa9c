// Package puller provides the core interface and registry for data pull jobs.
// A pull job fetches league history from a remote fantasy-sports API and
// writes it into the data_raw tree of the mirror repository.
package puller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tatnall-legacy/leaguemirror/pkg/config"
)

// Result summarizes a completed pull.
type Result struct {
	// Files are the paths written or overwritten, relative to the repository root
	Files []string
	// Records is the number of domain records fetched (transactions, lineup rows)
	Records int
	// Duration is how long the pull took
	Duration time.Duration
}

// Puller is the interface all pull jobs implement.
// Pull is the only mutating operation; its sole observable effect is files
// written under the repository's data path.
type Puller interface {
	// Name returns the display name of the job (e.g. "ESPN transactions")
	Name() string
	// Type returns the registry type key (e.g. "espn-transactions")
	Type() string
	// Source returns the remote system the job reads from
	Source() string
	// HealthCheck verifies the job's preconditions without fetching data
	HealthCheck(ctx context.Context) error
	// Pull fetches the data and writes it under the data path
	Pull(ctx context.Context) (*Result, error)
}

// Factory constructs a configured puller from the application configuration.
type Factory func(cfg *config.Config) (Puller, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterFactory registers a puller factory under a type key.
// Registration typically happens in package init functions.
func RegisterFactory(pullerType string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[pullerType] = factory
}

// Create builds a puller of the given type from the configuration.
func Create(pullerType string, cfg *config.Config) (Puller, error) {
	factoryMu.RLock()
	factory, ok := factories[pullerType]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown puller type: %s", pullerType)
	}
	return factory(cfg)
}

// Types returns the registered puller type keys, sorted.
func Types() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
