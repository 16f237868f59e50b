package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/indicators"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/replay"
	"github.com/rustyeddy/papertrader/risk"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

// writeResult answers a ledger mutation: v on success, otherwise the
// result code mapped to a status.
func writeResult(w http.ResponseWriter, r *http.Request, status int, v any, res broker.Result) {
	if res.OK() {
		writeJSON(w, r, status, v)
		return
	}
	writeJSON(w, r, resultStatus(res.Code), errorResponse{Error: res.Err().Error(), Code: res.Code.String()})
}

func resultStatus(code broker.ResultCode) int {
	switch code {
	case broker.ResultInsufficientMargin:
		return http.StatusConflict
	case broker.ResultTradeNotFound:
		return http.StatusNotFound
	case broker.ResultOK:
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// decode reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.sess.Snapshot())
}

// handleBars returns the visible bars, resampled when ?tf= is given.
func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	bars := s.sess.Visible()
	tf := ""
	if v := r.URL.Query().Get("tf"); v != "" {
		d, err := market.ParseTimeframe(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		if bars, err = market.Resample(bars, d); err != nil {
			writeError(w, r, http.StatusBadRequest, err)
			return
		}
		tf = market.TimeframeName(d)
	}
	writeJSON(w, r, http.StatusOK, struct {
		Symbol    string       `json:"symbol"`
		Timeframe string       `json:"timeframe,omitempty"`
		Bars      []market.Bar `json:"bars"`
	}{s.sess.Symbol(), tf, bars})
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.sess.Markers())
}

func (s *Server) handleIndicator(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := indicators.Config{Type: q.Get("type")}
	if cfg.Type == "" {
		writeJSON(w, r, http.StatusOK, map[string][]string{"types": indicators.Types()})
		return
	}

	var err error
	if v := q.Get("period"); v != "" {
		if cfg.Period, err = strconv.Atoi(v); err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("period: %w", err))
			return
		}
	}
	if v := q.Get("mult"); v != "" {
		if cfg.Mult, err = strconv.ParseFloat(v, 64); err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("mult: %w", err))
			return
		}
	}

	out, err := s.sess.Indicator(cfg)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

type symbolInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Bars     int    `json:"bars"`
	Selected bool   `json:"selected"`
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	p := s.sess.Provider()
	current := s.sess.Symbol()
	out := []symbolInfo{}
	for _, sym := range p.Symbols() {
		spec, _ := p.Spec(sym)
		out = append(out, symbolInfo{Symbol: sym, Name: spec.Name, Bars: p.Total(sym), Selected: sym == current})
	}
	writeJSON(w, r, http.StatusOK, out)
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleSelectSymbol(w http.ResponseWriter, r *http.Request) {
	var req symbolRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.sess.SelectSymbol(req.Symbol); err != nil {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.sess.Snapshot())
}

type replayResponse struct {
	replay.State
	Speeds []int `json:"speeds"`
}

func (s *Server) replayState() replayResponse {
	return replayResponse{State: s.sess.Replay(), Speeds: s.sess.Speeds()}
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.replayState())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if !s.sess.Play() {
		writeError(w, r, http.StatusConflict, errors.New("replay is at the end of the series"))
		return
	}
	writeJSON(w, r, http.StatusOK, s.replayState())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.sess.Pause()
	writeJSON(w, r, http.StatusOK, s.replayState())
}

type stepRequest struct {
	N int `json:"n"`
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	req := stepRequest{N: 1}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	s.sess.Step(req.N)
	writeJSON(w, r, http.StatusOK, s.replayState())
}

type seekRequest struct {
	Index *int `json:"index"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if req.Index == nil {
		writeError(w, r, http.StatusBadRequest, errors.New("index is required"))
		return
	}
	s.sess.Seek(*req.Index)
	writeJSON(w, r, http.StatusOK, s.replayState())
}

type speedRequest struct {
	Speed int `json:"speed"`
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.sess.SetSpeed(req.Speed); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.replayState())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sess.Reset()
	writeJSON(w, r, http.StatusOK, s.sess.Snapshot())
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request) {
	s.sess.ExitReplay()
	writeJSON(w, r, http.StatusOK, s.replayState())
}

func (s *Server) handleConnect(connected bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sess.SetConnected(connected)
		writeJSON(w, r, http.StatusOK, map[string]bool{"connected": connected})
	}
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades := s.sess.Account().Trades
	if r.URL.Query().Get("status") == "open" {
		trades = s.sess.Ledger().OpenTrades()
	}
	if trades == nil {
		trades = []broker.Trade{}
	}
	writeJSON(w, r, http.StatusOK, trades)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	t, ok := s.sess.Ledger().Trade(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, broker.ErrTradeNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// handleHistory lists closed trades as the journal recorded them.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	out := []journal.TradeRecord{}
	if s.history != nil {
		out = append(out, s.history.Trades()...)
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	out := []journal.EquitySnapshot{}
	if s.history != nil {
		out = append(out, s.history.Equity()...)
	}
	writeJSON(w, r, http.StatusOK, out)
}

type orderRequest struct {
	Side     string `json:"side"`
	Quantity int64  `json:"quantity"`
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	side, err := broker.ParseSide(req.Side)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	t, res := s.sess.Place(side, req.Quantity)
	writeResult(w, r, http.StatusCreated, t, res)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	t, res := s.sess.Close(r.PathValue("id"))
	writeResult(w, r, http.StatusOK, t, res)
}

func (s *Server) handleCloseAll(w http.ResponseWriter, r *http.Request) {
	out, res := s.sess.CloseAll()
	if out.Closed == nil {
		out.Closed = []broker.Trade{}
	}
	writeResult(w, r, http.StatusOK, out, res)
}

type riskRequest struct {
	Side       string  `json:"side"`
	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`
	Quantity   int64   `json:"quantity"`
}

type riskResponse struct {
	Plan  risk.Plan `json:"plan"`
	Valid bool      `json:"valid"`
	Error string    `json:"error,omitempty"`
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	req := riskRequest{Side: string(broker.Buy), Quantity: 1}
	if err := decode(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	side, err := broker.ParseSide(req.Side)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	plan := s.sess.RiskReward(side, req.StopLoss, req.TakeProfit, req.Quantity)
	resp := riskResponse{Plan: plan, Valid: true}
	if err := plan.Validate(); err != nil {
		resp.Valid, resp.Error = false, err.Error()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleClearDrawings(w http.ResponseWriter, r *http.Request) {
	s.sess.ClearDrawings()
	w.WriteHeader(http.StatusNoContent)
}
