// Package lenders resolves the directory of lender names offered as chat
// filters. The authoritative list comes from a configuration Source; when that
// source fails for any reason the built-in list is used instead.
package lenders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mortgage-criteria-chat/internal/domain"
)

// ErrDirectoryUnavailable wraps every failure to obtain the authoritative list.
var ErrDirectoryUnavailable = errors.New("lenders: directory unavailable")

// Source returns a raw lender configuration document in either supported shape.
type Source interface {
	LenderConfig(ctx context.Context) ([]byte, error)
}

// Observer is notified of each resolution.
type Observer interface {
	ObserveDirectory(fallback bool)
}

type Resolver struct {
	source   Source
	logger   *slog.Logger
	observer Observer
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		r.observer = o
	}
}

// NewResolver creates a Resolver reading from source. A nil source always
// resolves to the fallback directory.
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the lender directory. It never fails: any source error is
// logged and replaced by the fallback directory.
func (r *Resolver) Resolve(ctx context.Context) domain.LenderDirectory {
	names, err := r.fetch(ctx)
	fallback := err != nil
	if fallback {
		r.logger.Warn("lender directory unavailable, using built-in list", "err", err)
		names = Canonicalize(fallbackLenders)
	}
	if r.observer != nil {
		r.observer.ObserveDirectory(fallback)
	}
	return domain.LenderDirectory{
		Names:    append([]string{domain.AllLenders}, names...),
		Fallback: fallback,
	}
}

func (r *Resolver) fetch(ctx context.Context) (names []string, err error) {
	if r.source == nil {
		return nil, fmt.Errorf("%w: no configuration source", ErrDirectoryUnavailable)
	}
	defer func() {
		if p := recover(); p != nil {
			names, err = nil, fmt.Errorf("%w: source panicked: %v", ErrDirectoryUnavailable, p)
		}
	}()

	raw, err := r.source.LenderConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	}
	names = Canonicalize(cfg.Names())
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s configuration lists no lenders", ErrDirectoryUnavailable, cfg.kind())
	}
	r.logger.Debug("lender directory resolved", "shape", cfg.kind(), "lenders", len(names))
	return names, nil
}
