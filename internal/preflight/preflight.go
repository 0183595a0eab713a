// Package preflight verifies that upstream services are reachable before a
// synthesis run starts.
//
// Every lyrebird tool runs its checks at startup so that a missing model
// server or decoder sidecar fails fast with a clear message instead of
// surfacing mid-generation.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// probeTimeout is the maximum time a single probe may take before the
// context is cancelled.
const probeTimeout = 5 * time.Second

// Check is a named reachability probe. The Probe function should return nil
// when the dependency is up and a non-nil error describing the failure
// otherwise.
type Check struct {
	// Name is a short label for this check (e.g. "model server",
	// "snac decoder"). It prefixes the error message on failure.
	Name string

	// Probe contacts the dependency. It must respect context cancellation.
	Probe func(ctx context.Context) error
}

// Run evaluates the checks sequentially in the order provided. Each probe
// gets a [probeTimeout] deadline derived from ctx. All checks run even when
// an earlier one fails; the returned error joins every failure.
func Run(ctx context.Context, checks ...Check) error {
	var errs []error
	for _, c := range checks {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := c.Probe(probeCtx)
		cancel()

		if err != nil {
			errs = append(errs, fmt.Errorf("preflight: %s: %w", c.Name, err))
		}
	}
	return errors.Join(errs...)
}
