package registry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"mtbridge/internal/domain"
	"mtbridge/internal/terminal"
)

// fakeTerminal serves positions from a mutable slice and records close
// calls. Closes remove (or shrink) the matching position so subsequent
// queries see live state, like the real terminal.
type fakeTerminal struct {
	terminal.Terminal

	positions []domain.Position
	closes    []closeCall
	closeErr  error
}

type closeCall struct {
	ticket int64
	volume float64
}

func (f *fakeTerminal) EnsureConnected(ctx context.Context) error { return nil }

func (f *fakeTerminal) Positions(ctx context.Context, filter terminal.PositionFilter) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range f.positions {
		if filter.Symbol != "" && p.Symbol != filter.Symbol {
			continue
		}
		if filter.Ticket != 0 && p.Ticket != filter.Ticket {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeTerminal) ClosePosition(ctx context.Context, ticket int64, volume float64) (domain.OrderResult, error) {
	f.closes = append(f.closes, closeCall{ticket: ticket, volume: volume})
	if f.closeErr != nil {
		return domain.OrderResult{}, f.closeErr
	}
	for i, p := range f.positions {
		if p.Ticket != ticket {
			continue
		}
		if volume > 0 && volume < p.Volume {
			f.positions[i].Volume -= volume
		} else {
			f.positions = append(f.positions[:i], f.positions[i+1:]...)
		}
		return domain.OrderResult{Ticket: ticket, Retcode: terminal.RetcodeDone, Success: true, Message: "done"}, nil
	}
	return domain.OrderResult{}, terminal.ErrPositionNotFound
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func pos(ticket int64, symbol string, side domain.Side, volume float64, opened time.Time) domain.Position {
	return domain.Position{Ticket: ticket, Symbol: symbol, Side: side, Volume: volume, OpenTime: opened}
}

func TestListFiltersBySymbol(t *testing.T) {
	fake := &fakeTerminal{positions: []domain.Position{
		pos(1, "EURUSD", domain.SideBuy, 0.1, time.Now()),
		pos(2, "GBPUSD", domain.SideSell, 0.2, time.Now()),
	}}
	reg := New(fake, discardLogger())

	got, err := reg.List(context.Background(), terminal.PositionFilter{Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Ticket != 1 {
		t.Fatalf("got %+v, want single position with ticket 1", got)
	}
}

func TestCloseAllEmptyIsSuccess(t *testing.T) {
	fake := &fakeTerminal{}
	reg := New(fake, discardLogger())

	results, err := reg.CloseAll(context.Background(), terminal.PositionFilter{Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if results == nil {
		t.Fatal("results should be an empty slice, not nil")
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestCloseAllReportsEachTicket(t *testing.T) {
	fake := &fakeTerminal{positions: []domain.Position{
		pos(10, "EURUSD", domain.SideBuy, 0.1, time.Now()),
		pos(11, "EURUSD", domain.SideBuy, 0.2, time.Now()),
		pos(12, "GBPUSD", domain.SideSell, 0.3, time.Now()),
	}}
	reg := New(fake, discardLogger())

	results, err := reg.CloseAll(context.Background(), terminal.PositionFilter{Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if !r.Success {
			t.Errorf("ticket %d: want success, got %q", r.Ticket, r.Message)
		}
	}
	if len(fake.positions) != 1 || fake.positions[0].Ticket != 12 {
		t.Fatalf("GBPUSD position should survive, remaining %+v", fake.positions)
	}
}

func TestCloseAllVanishedTicketIsNoop(t *testing.T) {
	fake := &fakeTerminal{positions: []domain.Position{
		pos(20, "EURUSD", domain.SideBuy, 0.1, time.Now()),
	}}
	fake.closeErr = terminal.ErrPositionNotFound
	reg := New(fake, discardLogger())

	results, err := reg.CloseAll(context.Background(), terminal.PositionFilter{Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !results[0].Success {
		t.Fatalf("vanished ticket should report success, got %+v", results[0])
	}
	if results[0].Message != "position already closed" {
		t.Fatalf("got message %q", results[0].Message)
	}
}

func TestCloseSideOnlyMatchingDirection(t *testing.T) {
	fake := &fakeTerminal{positions: []domain.Position{
		pos(30, "EURUSD", domain.SideBuy, 0.1, time.Now()),
		pos(31, "EURUSD", domain.SideSell, 0.2, time.Now()),
		pos(32, "EURUSD", domain.SideSell, 0.3, time.Now()),
	}}
	reg := New(fake, discardLogger())

	results, err := reg.CloseSide(context.Background(), "EURUSD", domain.SideSell)
	if err != nil {
		t.Fatalf("CloseSide: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if len(fake.positions) != 1 || fake.positions[0].Ticket != 30 {
		t.Fatalf("buy position should survive, remaining %+v", fake.positions)
	}
}

func TestCloseByVolumeOldestFirst(t *testing.T) {
	base := time.Now()
	fake := &fakeTerminal{positions: []domain.Position{
		pos(42, "EURUSD", domain.SideBuy, 0.3, base.Add(time.Hour)),
		pos(40, "EURUSD", domain.SideBuy, 0.2, base),
		pos(41, "EURUSD", domain.SideBuy, 0.2, base.Add(time.Minute)),
	}}
	reg := New(fake, discardLogger())

	results, err := reg.CloseByVolume(context.Background(), "EURUSD", 0.3)
	if err != nil {
		t.Fatalf("CloseByVolume: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	want := []closeCall{{ticket: 40, volume: 0.2}, {ticket: 41, volume: 0.1}}
	for i, c := range fake.closes {
		if c != want[i] {
			t.Errorf("close %d: got %+v, want %+v", i, c, want[i])
		}
	}
	// Ticket 41 should remain with reduced volume.
	for _, p := range fake.positions {
		if p.Ticket == 41 && p.Volume != 0.1 {
			t.Errorf("ticket 41 volume: got %v, want 0.1", p.Volume)
		}
	}
}

func TestCloseByVolumeRejectsNonPositive(t *testing.T) {
	reg := New(&fakeTerminal{}, discardLogger())
	if _, err := reg.CloseByVolume(context.Background(), "EURUSD", 0); err == nil {
		t.Fatal("want error for zero volume")
	}
}
