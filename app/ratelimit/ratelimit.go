package ratelimit

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between requests to each upstream
// endpoint. The last-request timestamp per endpoint is persisted to a plain
// text file so independent processes (a cache-warming job and a live web
// request) share the same cooldown. Writes replace the file atomically.
type Limiter struct {
	path        string
	minInterval time.Duration

	mu    sync.Mutex
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a limiter persisting state to path. minInterval applies to
// every endpoint key.
func New(path string, minInterval time.Duration) (*Limiter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ratelimit state dir: %w", err)
	}
	return &Limiter{
		path:        path,
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}, nil
}

// Wait blocks until the minimum interval since the last request to endpoint
// has elapsed, then records the new request timestamp. It returns early with
// the context's error if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	for {
		l.mu.Lock()
		state := l.load()
		var remaining time.Duration
		if last, ok := state[endpoint]; ok {
			remaining = l.minInterval - l.now().Sub(time.Unix(last, 0))
		}
		if remaining <= 0 {
			state[endpoint] = l.now().Unix()
			err := l.save(state)
			l.mu.Unlock()
			return err
		}
		l.mu.Unlock()

		// Sleep with the lock released so one endpoint's cooldown never
		// stalls waiters on other endpoints, then re-check: a concurrent
		// waiter may have claimed this endpoint's slot meanwhile.
		if err := l.sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

func (l *Limiter) load() map[string]int64 {
	state := make(map[string]int64)
	f, err := os.Open(l.path)
	if err != nil {
		return state
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		ts, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		state[fields[0]] = ts
	}
	return state
}

func (l *Limiter) save(state map[string]int64) error {
	var sb strings.Builder
	for endpoint, ts := range state {
		fmt.Fprintf(&sb, "%s %d\n", endpoint, ts)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), "ratelimit-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ratelimit file: %w", err)
	}
	if _, err = tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write ratelimit state: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp ratelimit file: %w", err)
	}
	if err = os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace ratelimit state file: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
