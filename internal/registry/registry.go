// Package registry provides a read/close view over the positions currently
// open on the account. It never caches: every query re-reads live terminal
// state, so concurrent closes are always observed.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"mtbridge/internal/domain"
	"mtbridge/internal/terminal"
)

// Registry is a thin pass-through over the terminal session.
type Registry struct {
	term terminal.Terminal
	log  *slog.Logger
}

// New creates a Registry backed by the given terminal session.
func New(term terminal.Terminal, log *slog.Logger) *Registry {
	return &Registry{term: term, log: log}
}

// List returns the open positions matching the filter.
func (r *Registry) List(ctx context.Context, filter terminal.PositionFilter) ([]domain.Position, error) {
	if err := r.term.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return r.term.Positions(ctx, filter)
}

// CloseAll closes every position matching the filter and reports each
// ticket's result individually. Zero matches yields an empty, non-nil slice:
// nothing to close is a valid outcome, not a failure. A ticket that
// disappears between the query and the close (closed concurrently) is
// reported as a no-op success.
func (r *Registry) CloseAll(ctx context.Context, filter terminal.PositionFilter) ([]domain.CloseResult, error) {
	positions, err := r.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	results := make([]domain.CloseResult, 0, len(positions))
	for _, pos := range positions {
		results = append(results, r.closeOne(ctx, pos.Ticket, 0))
	}
	return results, nil
}

// CloseSide closes every position on the symbol with the given direction.
// Used to flatten opposite-direction exposure before opening an entry.
func (r *Registry) CloseSide(ctx context.Context, sym string, side domain.Side) ([]domain.CloseResult, error) {
	positions, err := r.List(ctx, terminal.PositionFilter{Symbol: sym})
	if err != nil {
		return nil, err
	}

	results := make([]domain.CloseResult, 0)
	for _, pos := range positions {
		if pos.Side != side {
			continue
		}
		results = append(results, r.closeOne(ctx, pos.Ticket, 0))
	}
	return results, nil
}

// CloseByVolume closes positions on the symbol oldest-first until the
// requested volume is consumed, partially closing the last position if
// needed.
func (r *Registry) CloseByVolume(ctx context.Context, sym string, volume float64) ([]domain.CloseResult, error) {
	if volume <= 0 {
		return nil, fmt.Errorf("close volume must be positive, got %v", volume)
	}

	positions, err := r.List(ctx, terminal.PositionFilter{Symbol: sym})
	if err != nil {
		return nil, err
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].OpenTime.Before(positions[j].OpenTime)
	})

	results := make([]domain.CloseResult, 0, len(positions))
	remaining := volume
	for _, pos := range positions {
		if remaining <= 0 {
			break
		}
		closeVolume := pos.Volume
		if remaining < pos.Volume {
			closeVolume = remaining
		}

		res := r.closeOne(ctx, pos.Ticket, closeVolume)
		results = append(results, res)
		if res.Success {
			remaining -= closeVolume
		}
	}
	return results, nil
}

func (r *Registry) closeOne(ctx context.Context, ticket int64, volume float64) domain.CloseResult {
	res, err := r.term.ClosePosition(ctx, ticket, volume)
	switch {
	case errors.Is(err, terminal.ErrPositionNotFound):
		// Already closed concurrently; nothing left to do on this ticket.
		r.log.Info("position already closed", "ticket", ticket)
		return domain.CloseResult{Ticket: ticket, Success: true, Message: "position already closed"}
	case err != nil:
		r.log.Error("closing position", "ticket", ticket, "error", err)
		return domain.CloseResult{Ticket: ticket, Success: false, Message: err.Error()}
	}

	r.log.Info("position closed", "ticket", ticket, "retcode", res.Retcode)
	return domain.CloseResult{Ticket: ticket, Success: true, Message: res.Message}
}
