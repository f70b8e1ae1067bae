package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gwillem/smartport/pkg/port"
)

// configurator reads and latches one family's configuration registers on
// a claimed port.
type configurator[C any] interface {
	readConfig(ctx context.Context, c *port.Claim) (C, error)
	writeConfig(ctx context.Context, c *port.Claim, cfg C) error
}

// transaction serializes one device object's hardware calls and runs each
// of them under the object's cached configuration.
//
// The lock only orders calls made through this object. Two objects sharing
// a port are ordered by the port claim alone, so if another object pushes
// between this object's push and restore, the restore reinstates whatever
// this object saw on the way in, which may be the other object's
// configuration rather than a stable prior state.
type transaction[C any] struct {
	mu     sync.Mutex
	brain  *Brain
	index  port.Index
	kind   port.DeviceType
	cache  *cache[C]
	config configurator[C]
}

func newTransaction[C any](b *Brain, i port.Index, kind port.DeviceType, cfg C, conf configurator[C]) *transaction[C] {
	return &transaction[C]{
		brain:  b,
		index:  i,
		kind:   kind,
		cache:  newCache(cfg),
		config: conf,
	}
}

// withConfiguration installs tx's cached configuration on the port, runs
// fn, and restores the configuration the port held before. The restore
// runs even when fn fails. The object lock is released on every path.
func withConfiguration[C, T any](ctx context.Context, tx *transaction[C], op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	tx.mu.Lock()
	defer tx.mu.Unlock()

	prev, err := tx.push(ctx)
	if err != nil {
		tx.brain.log.Debug("configuration push failed",
			slog.Int("port", int(tx.index)), slog.String("op", op), slog.Any("err", err))
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	v, callErr := fn(ctx)

	// Restore even if the caller's context has ended.
	if err := tx.pop(context.WithoutCancel(ctx), prev); err != nil {
		tx.brain.log.Warn("configuration restore failed",
			slog.Int("port", int(tx.index)), slog.String("op", op), slog.Any("err", err))
		return zero, fmt.Errorf("%s: %w", op, errors.Join(callErr, err))
	}
	if callErr != nil {
		return zero, fmt.Errorf("%s: %w", op, callErr)
	}
	return v, nil
}

// push latches the cached configuration and returns what it replaced. If
// latching fails part way, the previous configuration is put back.
func (tx *transaction[C]) push(ctx context.Context) (C, error) {
	var zero C
	c, err := tx.brain.ports.Claim(ctx, tx.index, tx.kind)
	if err != nil {
		return zero, err
	}
	defer c.Return()

	prev, err := tx.config.readConfig(ctx, c)
	if err != nil {
		return zero, err
	}
	if err := tx.config.writeConfig(ctx, c, tx.cache.read()); err != nil {
		if rerr := tx.config.writeConfig(ctx, c, prev); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return zero, err
	}
	return prev, nil
}

func (tx *transaction[C]) pop(ctx context.Context, prev C) error {
	return do(ctx, tx.brain, tx.index, tx.kind, func(ctx context.Context, c *port.Claim) error {
		return tx.config.writeConfig(ctx, c, prev)
	})
}

// set updates the cached configuration with update and writes the changed
// field straight to the port with write. The cache is updated even if the
// write fails.
func (tx *transaction[C]) set(ctx context.Context, op string, update func(*C), write func(context.Context, *port.Claim, C) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	cfg := tx.cache.read()
	update(&cfg)
	tx.cache.write(cfg)

	err := do(ctx, tx.brain, tx.index, tx.kind, func(ctx context.Context, c *port.Claim) error {
		return write(ctx, c, cfg)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// init latches the whole cached configuration once, at construction.
func (tx *transaction[C]) init(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return do(ctx, tx.brain, tx.index, tx.kind, func(ctx context.Context, c *port.Claim) error {
		return tx.config.writeConfig(ctx, c, tx.cache.read())
	})
}
