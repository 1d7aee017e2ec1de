// Package engine turns normalized trade signals into terminal orders. It is
// the only component that drives the terminal session, and it serializes
// whole signals so two webhook deliveries can never interleave their broker
// calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mtbridge/internal/domain"
	"mtbridge/internal/signal"
	"mtbridge/internal/symbol"
	"mtbridge/internal/terminal"
)

// Registry is the close/list view the engine uses for close signals and
// for flattening opposite exposure before an entry.
type Registry interface {
	CloseAll(ctx context.Context, filter terminal.PositionFilter) ([]domain.CloseResult, error)
	CloseSide(ctx context.Context, sym string, side domain.Side) ([]domain.CloseResult, error)
}

// Recorder persists processed signals. May be nil to disable journaling.
type Recorder interface {
	Record(ctx context.Context, sym, action string, volume float64, outcome domain.ExecutionOutcome, raw any) error
}

// Notifier sends out-of-band alerts about outcomes. May be nil.
type Notifier interface {
	NotifyOutcome(sym, action string, volume float64, outcome domain.ExecutionOutcome)
}

// Options carries the trading policy applied to every signal.
type Options struct {
	Suffix          string
	Defaults        signal.Defaults
	Deviation       int
	Magic           int
	FlattenOpposite bool
}

// Engine executes signals against a single terminal session.
type Engine struct {
	term     terminal.Terminal
	registry Registry
	opts     Options
	journal  Recorder
	notifier Notifier
	log      *slog.Logger

	// mu serializes signals end-to-end: the session underneath is one
	// authenticated connection to one account.
	mu sync.Mutex
}

// New creates an Engine. journal and notifier may be nil.
func New(term terminal.Terminal, registry Registry, opts Options, journal Recorder, notifier Notifier, log *slog.Logger) *Engine {
	return &Engine{
		term:     term,
		registry: registry,
		opts:     opts,
		journal:  journal,
		notifier: notifier,
		log:      log,
	}
}

// Execute runs one signal to a terminal state. It never returns an error:
// every failure mode is folded into the outcome so the caller can serialize
// it directly. At-most-once: no submission is ever retried, and the only
// reconnect attempt is the one inside EnsureConnected.
func (e *Engine) Execute(ctx context.Context, payload signal.Payload) domain.ExecutionOutcome {
	outcome, volume := func() (domain.ExecutionOutcome, float64) {
		e.mu.Lock()
		defer e.mu.Unlock()

		outcome := e.execute(ctx, payload)

		volume := 0.0
		if sig, err := signal.Normalize(payload, e.opts.Defaults); err == nil {
			volume = sig.Volume
		}
		if e.journal != nil {
			if err := e.journal.Record(ctx, payload.Symbol, payload.Action, volume, outcome, payload); err != nil {
				e.log.Error("journaling signal", "symbol", payload.Symbol, "error", err)
			}
		}
		return outcome, volume
	}()

	// Notification is fire-and-forget: a slow or hung delivery must never
	// hold up this response or the signals queued behind the mutex.
	if e.notifier != nil {
		go e.notifier.NotifyOutcome(payload.Symbol, payload.Action, volume, outcome)
	}
	return outcome
}

func (e *Engine) execute(ctx context.Context, payload signal.Payload) domain.ExecutionOutcome {
	sig, err := signal.Normalize(payload, e.opts.Defaults)
	if err != nil {
		e.log.Warn("signal rejected", "symbol", payload.Symbol, "action", payload.Action, "error", err)
		return rejected(err.Error())
	}

	if err := e.term.EnsureConnected(ctx); err != nil {
		e.log.Error("terminal unavailable", "error", err)
		return errored(0, err.Error())
	}

	resolved := symbol.Resolve(sig.Symbol, e.opts.Suffix)
	info, err := e.term.SymbolInfo(ctx, resolved)
	if err != nil {
		var symErr *terminal.SymbolError
		if errors.As(err, &symErr) {
			e.log.Warn("symbol not listed", "symbol", resolved)
			return rejected(err.Error())
		}
		return errored(0, err.Error())
	}

	if sig.Action == domain.ActionClose {
		return e.executeClose(ctx, sig, resolved)
	}
	return e.executeEntry(ctx, sig, resolved, info)
}

// executeClose flattens every matching position and reports each ticket
// individually. Zero matches is a success: nothing to close.
func (e *Engine) executeClose(ctx context.Context, sig domain.TradeSignal, resolved string) domain.ExecutionOutcome {
	filter := terminal.PositionFilter{Symbol: resolved}
	if sig.Ticket != 0 {
		filter = terminal.PositionFilter{Ticket: sig.Ticket}
	}

	results, err := e.registry.CloseAll(ctx, filter)
	if err != nil {
		return errored(0, err.Error())
	}
	if len(results) == 0 {
		e.log.Info("no matching positions", "symbol", resolved, "ticket", sig.Ticket)
		return domain.ExecutionOutcome{
			State:   domain.StateRejected,
			Success: true,
			Message: "no matching positions to close",
			Results: results,
		}
	}

	success := true
	for _, r := range results {
		if !r.Success {
			success = false
		}
	}
	state := domain.StateFilled
	if !success {
		state = domain.StateErrored
	}
	e.log.Info("close signal handled", "symbol", resolved, "closed", len(results), "success", success)
	return domain.ExecutionOutcome{State: state, Success: success, Results: results}
}

func (e *Engine) executeEntry(ctx context.Context, sig domain.TradeSignal, resolved string, info domain.SymbolInfo) domain.ExecutionOutcome {
	side := domain.SideBuy
	if sig.Action == domain.ActionSell {
		side = domain.SideSell
	}

	if e.opts.FlattenOpposite {
		// An opposite-side close failure never blocks the entry.
		results, err := e.registry.CloseSide(ctx, resolved, side.Opposite())
		if err != nil {
			e.log.Error("flattening opposite positions", "symbol", resolved, "error", err)
		}
		for _, r := range results {
			if !r.Success {
				e.log.Error("flatten close failed", "ticket", r.Ticket, "message", r.Message)
			}
		}
	}

	tick, err := e.term.SymbolTick(ctx, resolved)
	if err != nil {
		return errored(0, err.Error())
	}

	price := tick.Ask
	if side == domain.SideSell {
		price = tick.Bid
	}

	req := &domain.OrderRequest{
		Symbol:    resolved,
		Side:      side,
		Volume:    sig.Volume,
		Price:     price,
		Deviation: e.opts.Deviation,
		Magic:     e.opts.Magic,
		Comment:   fmt.Sprintf("%s order", side),
	}
	// Distances arrive in points and become absolute prices at the live
	// quote. Zero leaves the level unset.
	if sig.StopLossPips > 0 {
		if side == domain.SideBuy {
			req.StopLoss = price - sig.StopLossPips*info.Point
		} else {
			req.StopLoss = price + sig.StopLossPips*info.Point
		}
	}
	if sig.TakeProfitPips > 0 {
		if side == domain.SideBuy {
			req.TakeProfit = price + sig.TakeProfitPips*info.Point
		} else {
			req.TakeProfit = price - sig.TakeProfitPips*info.Point
		}
	}

	res, err := e.term.SubmitOrder(ctx, req)
	if err != nil {
		var execErr *terminal.ExecutionError
		if errors.As(err, &execErr) {
			// The broker's own diagnosis, code and message untouched.
			e.log.Error("order not executed", "symbol", resolved, "retcode", execErr.Code, "message", execErr.Message)
			return errored(execErr.Code, execErr.Message)
		}
		e.log.Error("submitting order", "symbol", resolved, "error", err)
		return errored(0, err.Error())
	}

	e.log.Info("order filled",
		"symbol", resolved, "side", side.String(), "volume", sig.Volume,
		"ticket", res.Ticket, "retcode", res.Retcode)
	return domain.ExecutionOutcome{
		State:   domain.StateFilled,
		Success: true,
		Ticket:  res.Ticket,
		Retcode: res.Retcode,
		Message: res.Message,
	}
}

func rejected(msg string) domain.ExecutionOutcome {
	return domain.ExecutionOutcome{State: domain.StateRejected, Message: msg}
}

func errored(retcode int, msg string) domain.ExecutionOutcome {
	return domain.ExecutionOutcome{State: domain.StateErrored, Retcode: retcode, Message: msg}
}
