package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingPurger struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 3, p.err
}

func (p *countingPurger) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	p := &countingPurger{}
	w := &sweeper{store: p, logger: zerolog.Nop(), interval: 10 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if p.Calls() < 2 {
		t.Fatalf("expected repeated sweeps, got %d", p.Calls())
	}
}

func TestSweepLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	w := &sweeper{store: &countingPurger{err: errors.New("db down")}, logger: zerolog.New(&buf), interval: time.Hour}
	w.sweep(context.Background())
	if !strings.Contains(buf.String(), "sweep failed") {
		t.Fatalf("expected failure log, got %s", buf.String())
	}
}
