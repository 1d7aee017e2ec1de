// Package mtbridge provides a Go client for the mtbridge HTTP API.
package mtbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to a running mtbridge server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Signal is an inbound trade instruction, mirroring the webhook payload.
type Signal struct {
	Symbol     string `json:"symbol"`
	Action     string `json:"action"`
	Volume     any    `json:"volume,omitempty"`
	StopLoss   any    `json:"stop_loss,omitempty"`
	TakeProfit any    `json:"take_profit,omitempty"`
	Ticket     int64  `json:"ticket,omitempty"`
}

// Outcome is the server's verdict on a signal. Results is non-nil for
// close signals, one entry per affected ticket.
type Outcome struct {
	Success bool          `json:"success"`
	Ticket  int64         `json:"ticket,omitempty"`
	Retcode int           `json:"retcode,omitempty"`
	Message string        `json:"message,omitempty"`
	Results []CloseResult `json:"results,omitempty"`
}

// CloseResult is the per-ticket result of a close operation.
type CloseResult struct {
	Ticket  int64  `json:"ticket"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Position is an open trade on the account.
type Position struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Direction    string    `json:"direction"`
	Volume       float64   `json:"volume"`
	OpenPrice    float64   `json:"open_price"`
	CurrentPrice float64   `json:"current_price"`
	Profit       float64   `json:"profit"`
	OpenTime     time.Time `json:"open_time"`
}

// Account is a snapshot of the trading account.
type Account struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Profit     float64 `json:"profit"`
}

// Health is the server's health report.
type Health struct {
	Status           string `json:"status"`
	Connected        bool   `json:"connected"`
	SignalsProcessed int64  `json:"signals_processed"`
}

// SendSignal submits a trade signal and returns the structured outcome.
// Rejected and errored signals return the outcome alongside a non-nil
// error describing the HTTP status.
func (c *Client) SendSignal(ctx context.Context, sig Signal) (Outcome, error) {
	body, err := json.Marshal(sig)
	if err != nil {
		return Outcome{}, fmt.Errorf("encoding signal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/webhook", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{}, err
	}
	defer resp.Body.Close()

	var out Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Outcome{}, fmt.Errorf("decoding outcome: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("signal not executed (HTTP %d): %s", resp.StatusCode, out.Message)
	}
	return out, nil
}

// Positions lists open positions, optionally filtered by symbol.
func (c *Client) Positions(ctx context.Context, symbol string) ([]Position, error) {
	u := c.baseURL + "/positions"
	if symbol != "" {
		u += "?symbol=" + url.QueryEscape(symbol)
	}

	var out []Position
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes positions by symbol and/or ticket. A positive volume
// requests a partial close by volume.
func (c *Client) Close(ctx context.Context, symbol string, ticket int64, volume float64) ([]CloseResult, error) {
	body, err := json.Marshal(map[string]any{
		"symbol": symbol,
		"ticket": ticket,
		"volume": volume,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/close", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("close failed (HTTP %d): %s", resp.StatusCode, msg)
	}

	var out struct {
		Results []CloseResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding close results: %w", err)
	}
	return out.Results, nil
}

// Account retrieves the account snapshot.
func (c *Client) Account(ctx context.Context) (Account, error) {
	var out Account
	err := c.getJSON(ctx, c.baseURL+"/account", &out)
	return out, err
}

// Health retrieves the server's health report.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.getJSON(ctx, c.baseURL+"/health", &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s failed (HTTP %d): %s", u, resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
