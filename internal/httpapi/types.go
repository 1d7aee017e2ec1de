package httpapi

import (
	"time"

	"mtbridge/internal/domain"
)

// orderResponse is the single-order outcome shape.
type orderResponse struct {
	Success bool   `json:"success"`
	Ticket  int64  `json:"ticket,omitempty"`
	Retcode int    `json:"retcode,omitempty"`
	Message string `json:"message"`
}

// closeResponse is the composite close outcome shape: one entry per
// affected ticket, present even when empty.
type closeResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Results []domain.CloseResult `json:"results"`
}

type positionResponse struct {
	Ticket       int64     `json:"ticket"`
	Symbol       string    `json:"symbol"`
	Direction    string    `json:"direction"`
	Volume       float64   `json:"volume"`
	OpenPrice    float64   `json:"open_price"`
	CurrentPrice float64   `json:"current_price"`
	Profit       float64   `json:"profit"`
	OpenTime     time.Time `json:"open_time"`
}

func toPositionResponse(p domain.Position) positionResponse {
	return positionResponse{
		Ticket:       p.Ticket,
		Symbol:       p.Symbol,
		Direction:    p.Side.String(),
		Volume:       p.Volume,
		OpenPrice:    p.OpenPrice,
		CurrentPrice: p.CurrentPrice,
		Profit:       p.Profit,
		OpenTime:     p.OpenTime,
	}
}

type accountResponse struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Profit     float64 `json:"profit"`
}

// closeRequest is the body of POST /close. At least one of symbol or
// ticket must be set; a positive volume requests a partial close.
type closeRequest struct {
	Symbol string  `json:"symbol"`
	Ticket int64   `json:"ticket"`
	Volume float64 `json:"volume"`
}

type healthResponse struct {
	Status           string `json:"status"`
	Connected        bool   `json:"connected"`
	SignalsProcessed int64  `json:"signals_processed"`
}
