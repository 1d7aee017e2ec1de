package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mtbridge/internal/domain"
)

// Compile-time interface check.
var _ Terminal = (*Session)(nil)

// Options configures a live terminal session.
type Options struct {
	BridgeURL   string
	Account     int64
	Password    string
	Server      string
	Path        string // terminal install path, forwarded to the bridge on login
	Deviation   int    // max slippage in points for close deals
	Magic       int
	CallTimeout time.Duration
}

// Session is the live Terminal implementation. It holds a single
// authenticated websocket connection to the terminal-side bridge and
// serializes every call through one mutex: the terminal API is not safe for
// concurrent use, and the account must see operations one at a time.
type Session struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewSession creates a session for the given bridge endpoint and account.
// No connection is made until Connect or EnsureConnected.
func NewSession(opts Options, log *slog.Logger) *Session {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 10 * time.Second
	}
	return &Session{opts: opts, log: log}
}

// ---------------------------------------------------------------------------
// Wire protocol
// ---------------------------------------------------------------------------

type rpcRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcFault       `json:"error"`
}

// rpcFault is an error frame returned by the bridge.
type rpcFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcFault) Error() string {
	return fmt.Sprintf("bridge error %d: %s", e.Code, e.Message)
}

type loginParams struct {
	Account  int64  `json:"account"`
	Password string `json:"password"`
	Server   string `json:"server"`
	Path     string `json:"path,omitempty"`
}

type symbolParams struct {
	Symbol string `json:"symbol"`
}

type positionsParams struct {
	Symbol string `json:"symbol,omitempty"`
	Ticket int64  `json:"ticket,omitempty"`
}

type orderParams struct {
	Symbol      string  `json:"symbol"`
	Volume      float64 `json:"volume"`
	Type        int     `json:"type"`
	Price       float64 `json:"price"`
	StopLoss    float64 `json:"sl,omitempty"`
	TakeProfit  float64 `json:"tp,omitempty"`
	Deviation   int     `json:"deviation"`
	Magic       int     `json:"magic"`
	Comment     string  `json:"comment"`
	Position    int64   `json:"position,omitempty"`
	TypeTime    string  `json:"type_time"`
	TypeFilling string  `json:"type_filling"`
}

type wireSymbolInfo struct {
	Name       string  `json:"name"`
	Digits     int     `json:"digits"`
	Point      float64 `json:"point"`
	VolumeMin  float64 `json:"volume_min"`
	VolumeMax  float64 `json:"volume_max"`
	VolumeStep float64 `json:"volume_step"`
}

type wireTick struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Time int64   `json:"time"`
}

type wireOrderResult struct {
	Retcode int    `json:"retcode"`
	Order   int64  `json:"order"`
	Comment string `json:"comment"`
}

type wirePosition struct {
	Ticket       int64   `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Type         int     `json:"type"`
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
	Time         int64   `json:"time"`
}

type wireAccountInfo struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Profit     float64 `json:"profit"`
}

func isNullResult(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// Connect establishes the session. Idempotent: if the session is already
// connected and answers a ping, nothing is done.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected && s.pingLocked(ctx) == nil {
		return nil
	}
	return s.connectLocked(ctx)
}

// EnsureConnected verifies session health, attempting at most one reconnect.
func (s *Session) EnsureConnected(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		if s.pingLocked(ctx) == nil {
			return nil
		}
		s.log.Warn("terminal session unhealthy, reconnecting")
	}
	// Single reconnect attempt; a second consecutive failure surfaces to
	// the caller.
	return s.connectLocked(ctx)
}

// Connected reports whether the session holds a live connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Close tears down the session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		s.log.Info("terminal session closed")
	}
	s.closeLocked()
	return nil
}

func (s *Session) connectLocked(ctx context.Context) error {
	s.closeLocked()

	dialer := websocket.Dialer{HandshakeTimeout: s.opts.CallTimeout}
	conn, _, err := dialer.DialContext(ctx, s.opts.BridgeURL, nil)
	if err != nil {
		return &ConnectionError{Reason: "dialing " + s.opts.BridgeURL, Err: err}
	}
	s.conn = conn
	s.connected = true

	login := loginParams{
		Account:  s.opts.Account,
		Password: s.opts.Password,
		Server:   s.opts.Server,
		Path:     s.opts.Path,
	}
	if _, err := s.callLocked(ctx, "login", login); err != nil {
		s.closeLocked()
		return &ConnectionError{Reason: "login failed", Err: err}
	}

	s.log.Info("terminal session established",
		"account", s.opts.Account, "server", s.opts.Server)
	return nil
}

func (s *Session) closeLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
}

func (s *Session) pingLocked(ctx context.Context) error {
	_, err := s.callLocked(ctx, "ping", nil)
	return err
}

// callLocked performs one request/response round trip. The caller must hold
// s.mu. Any transport failure closes the connection so the next
// EnsureConnected reconnects.
func (s *Session) callLocked(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !s.connected {
		return nil, &ConnectionError{Reason: "not connected"}
	}

	deadline := time.Now().Add(s.opts.CallTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	id := uuid.NewString()

	s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteJSON(rpcRequest{ID: id, Method: method, Params: params}); err != nil {
		s.closeLocked()
		return nil, &ConnectionError{Reason: "sending " + method, Err: err}
	}

	s.conn.SetReadDeadline(deadline)
	for {
		var resp rpcResponse
		if err := s.conn.ReadJSON(&resp); err != nil {
			s.closeLocked()
			return nil, &ConnectionError{Reason: "awaiting " + method + " response", Err: err}
		}
		if resp.ID != id {
			// Stale response from a call that timed out earlier.
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// ---------------------------------------------------------------------------
// Typed calls
// ---------------------------------------------------------------------------

// SymbolInfo returns instrument details for a broker symbol.
func (s *Session) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbolInfoLocked(ctx, symbol)
}

func (s *Session) symbolInfoLocked(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	raw, err := s.callLocked(ctx, "symbol_info", symbolParams{Symbol: symbol})
	if err != nil {
		return domain.SymbolInfo{}, err
	}
	if isNullResult(raw) {
		return domain.SymbolInfo{}, &SymbolError{Symbol: symbol}
	}

	var w wireSymbolInfo
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.SymbolInfo{}, fmt.Errorf("decoding symbol_info result: %w", err)
	}
	return domain.SymbolInfo{
		Name:       w.Name,
		Digits:     w.Digits,
		Point:      w.Point,
		VolumeMin:  w.VolumeMin,
		VolumeMax:  w.VolumeMax,
		VolumeStep: w.VolumeStep,
	}, nil
}

// SymbolTick returns the live quote for a symbol.
func (s *Session) SymbolTick(ctx context.Context, symbol string) (domain.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbolTickLocked(ctx, symbol)
}

func (s *Session) symbolTickLocked(ctx context.Context, symbol string) (domain.Tick, error) {
	raw, err := s.callLocked(ctx, "symbol_tick", symbolParams{Symbol: symbol})
	if err != nil {
		return domain.Tick{}, err
	}
	if isNullResult(raw) {
		return domain.Tick{}, fmt.Errorf("no tick available for %s", symbol)
	}

	var w wireTick
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.Tick{}, fmt.Errorf("decoding symbol_tick result: %w", err)
	}
	return domain.Tick{Bid: w.Bid, Ask: w.Ask, Time: time.Unix(w.Time, 0)}, nil
}

// SubmitOrder sends an order to the terminal and interprets the retcode.
func (s *Session) SubmitOrder(ctx context.Context, req *domain.OrderRequest) (domain.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(ctx, req)
}

func (s *Session) submitLocked(ctx context.Context, req *domain.OrderRequest) (domain.OrderResult, error) {
	params := orderParams{
		Symbol:      req.Symbol,
		Volume:      req.Volume,
		Type:        int(req.Side),
		Price:       req.Price,
		StopLoss:    req.StopLoss,
		TakeProfit:  req.TakeProfit,
		Deviation:   req.Deviation,
		Magic:       req.Magic,
		Comment:     req.Comment,
		Position:    req.Position,
		TypeTime:    "GTC",
		TypeFilling: "FOK",
	}

	raw, err := s.callLocked(ctx, "order_send", params)
	if err != nil {
		if fault, ok := err.(*rpcFault); ok {
			return domain.OrderResult{}, &ExecutionError{Code: fault.Code, Message: fault.Message}
		}
		// A timed-out submission may still have reached the broker. Report
		// it as an execution fault, not a connection fault: the caller must
		// not assume the order was never placed.
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return domain.OrderResult{}, &ExecutionError{Code: 0, Message: "order submission timed out"}
		}
		return domain.OrderResult{}, err
	}

	var w wireOrderResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.OrderResult{}, fmt.Errorf("decoding order_send result: %w", err)
	}

	msg := w.Comment
	if msg == "" {
		msg = RetcodeDescription(w.Retcode)
	}
	result := domain.OrderResult{
		Ticket:  w.Order,
		Retcode: w.Retcode,
		Success: RetcodeSuccess(w.Retcode),
		Message: msg,
	}
	if !result.Success {
		return result, &ExecutionError{Code: w.Retcode, Message: msg}
	}
	return result, nil
}

// Positions returns open positions matching the filter, read live from the
// terminal.
func (s *Session) Positions(ctx context.Context, filter PositionFilter) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionsLocked(ctx, filter)
}

func (s *Session) positionsLocked(ctx context.Context, filter PositionFilter) ([]domain.Position, error) {
	raw, err := s.callLocked(ctx, "positions_get", positionsParams{Symbol: filter.Symbol, Ticket: filter.Ticket})
	if err != nil {
		return nil, err
	}
	if isNullResult(raw) {
		return nil, nil
	}

	var wire []wirePosition
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding positions_get result: %w", err)
	}

	positions := make([]domain.Position, 0, len(wire))
	for _, w := range wire {
		positions = append(positions, domain.Position{
			Ticket:       w.Ticket,
			Symbol:       w.Symbol,
			Side:         domain.Side(w.Type),
			Volume:       w.Volume,
			OpenPrice:    w.PriceOpen,
			CurrentPrice: w.PriceCurrent,
			Profit:       w.Profit,
			OpenTime:     time.Unix(w.Time, 0),
		})
	}
	return positions, nil
}

// ClosePosition issues an opposite-direction deal against the ticket. The
// position lookup, quote fetch, and deal submission happen under one lock so
// no other operation can interleave.
func (s *Session) ClosePosition(ctx context.Context, ticket int64, volume float64) (domain.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.positionsLocked(ctx, PositionFilter{Ticket: ticket})
	if err != nil {
		return domain.OrderResult{}, err
	}
	if len(positions) == 0 {
		return domain.OrderResult{}, ErrPositionNotFound
	}
	pos := positions[0]

	tick, err := s.symbolTickLocked(ctx, pos.Symbol)
	if err != nil {
		return domain.OrderResult{}, err
	}

	closeVolume := pos.Volume
	if volume > 0 && volume < pos.Volume {
		closeVolume = volume
	}

	// A buy position is closed by selling at the bid, and vice versa.
	price := tick.Bid
	if pos.Side == domain.SideSell {
		price = tick.Ask
	}

	req := &domain.OrderRequest{
		Symbol:    pos.Symbol,
		Side:      pos.Side.Opposite(),
		Volume:    closeVolume,
		Price:     price,
		Deviation: s.opts.Deviation,
		Magic:     s.opts.Magic,
		Comment:   "Close position",
		Position:  ticket,
	}
	return s.submitLocked(ctx, req)
}

// AccountInfo returns a snapshot of the account's financial state.
func (s *Session) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.callLocked(ctx, "account_info", nil)
	if err != nil {
		return domain.AccountInfo{}, err
	}

	var w wireAccountInfo
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.AccountInfo{}, fmt.Errorf("decoding account_info result: %w", err)
	}
	return domain.AccountInfo{
		Login:      w.Login,
		Balance:    w.Balance,
		Equity:     w.Equity,
		Margin:     w.Margin,
		FreeMargin: w.MarginFree,
		Profit:     w.Profit,
	}, nil
}
