package preflight_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lyrebird-audio/lyrebird/internal/preflight"
)

func TestRun_AllHealthy(t *testing.T) {
	t.Parallel()

	healthy := func(context.Context) error { return nil }
	err := preflight.Run(context.Background(),
		preflight.Check{Name: "model server", Probe: healthy},
		preflight.Check{Name: "snac decoder", Probe: healthy},
	)
	if err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
}

func TestRun_ReportsFailureWithName(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	err := preflight.Run(context.Background(),
		preflight.Check{Name: "snac decoder", Probe: func(context.Context) error { return boom }},
	)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error should wrap the probe failure, got: %v", err)
	}
	if !strings.Contains(err.Error(), "snac decoder") {
		t.Errorf("error should name the failed check, got: %v", err)
	}
}

func TestRun_AllChecksRunDespiteFailure(t *testing.T) {
	t.Parallel()

	first := errors.New("server down")
	second := errors.New("decoder down")
	var ran []string

	err := preflight.Run(context.Background(),
		preflight.Check{Name: "model server", Probe: func(context.Context) error {
			ran = append(ran, "model server")
			return first
		}},
		preflight.Check{Name: "snac decoder", Probe: func(context.Context) error {
			ran = append(ran, "snac decoder")
			return second
		}},
	)
	if len(ran) != 2 {
		t.Fatalf("expected both probes to run, ran: %v", ran)
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("error should join both failures, got: %v", err)
	}
}

func TestRun_ProbeGetsDeadline(t *testing.T) {
	t.Parallel()

	err := preflight.Run(context.Background(),
		preflight.Check{Name: "model server", Probe: func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("probe context has no deadline")
			}
			return nil
		}},
	)
	if err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
}

func TestRun_NoChecks(t *testing.T) {
	t.Parallel()

	if err := preflight.Run(context.Background()); err != nil {
		t.Errorf("expected nil error for empty check list, got: %v", err)
	}
}
