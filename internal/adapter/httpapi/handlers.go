package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finsim/papertrade-backend/internal/domain"
	"github.com/finsim/papertrade-backend/internal/usecase/trading"
)

type buyRequest struct {
	Symbol     string          `json:"symbol"`
	AssetClass string          `json:"asset_class"`
	AssetName  string          `json:"asset_name,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Fee        decimal.Decimal `json:"fee,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

type sellRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee,omitempty"`
	Notes    string          `json:"notes,omitempty"`
}

type portfolioResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CashBalance    decimal.Decimal `json:"cash_balance"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	XP             int             `json:"xp"`
	Level          int             `json:"level"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type positionResponse struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	AssetClass string          `json:"asset_class"`
	AssetName  string          `json:"asset_name,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	AvgCost    decimal.Decimal `json:"avg_cost"`
	Status     string          `json:"status"`
	OpenedAt   time.Time       `json:"opened_at"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
}

type transactionResponse struct {
	ID          string          `json:"id"`
	PositionID  *string         `json:"position_id,omitempty"`
	Type        string          `json:"type"`
	Symbol      string          `json:"symbol"`
	AssetClass  string          `json:"asset_class"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type snapshotResponse struct {
	Portfolio portfolioResponse  `json:"portfolio"`
	Positions []positionResponse `json:"positions"`
}

type tradeResponse struct {
	Portfolio        portfolioResponse   `json:"portfolio"`
	Position         positionResponse    `json:"position"`
	Transaction      transactionResponse `json:"transaction"`
	RealizedPnLDelta *decimal.Decimal    `json:"realized_pnl_delta,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	snapshot, err := s.trading.GetPortfolio(r.Context(), ownerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := snapshotResponse{
		Portfolio: toPortfolioResponse(snapshot.Portfolio),
		Positions: toPositionResponses(snapshot.OpenPositions),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.trading.ExecuteBuy(r.Context(), trading.BuyInput{
		OwnerID:    ownerID,
		Symbol:     req.Symbol,
		AssetClass: domain.AssetClass(req.AssetClass),
		AssetName:  req.AssetName,
		Quantity:   req.Quantity,
		Price:      req.Price,
		Fee:        req.Fee,
		Notes:      req.Notes,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTradeResponse(result, false))
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	result, err := s.trading.ExecuteSell(r.Context(), trading.SellInput{
		OwnerID:  ownerID,
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Price:    req.Price,
		Fee:      req.Fee,
		Notes:    req.Notes,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTradeResponse(result, true))
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	positions, err := s.trading.ListPositions(r.Context(), ownerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPositionResponses(positions))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	transactions, err := s.trading.ListTransactions(r.Context(), ownerID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeDomainError maps domain errors onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, domain.ErrInsufficientQuantity):
		writeError(w, http.StatusBadRequest, "insufficient quantity")
	case errors.Is(err, domain.ErrPortfolioNotFound):
		writeError(w, http.StatusNotFound, "portfolio not found")
	case errors.Is(err, domain.ErrPositionNotFound):
		writeError(w, http.StatusNotFound, "position not found")
	case errors.Is(err, domain.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "conflicting concurrent update, retry")
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func toPortfolioResponse(p *domain.Portfolio) portfolioResponse {
	return portfolioResponse{
		ID:             p.ID.String(),
		Name:           p.Name,
		InitialBalance: p.InitialBalance,
		CashBalance:    p.CashBalance,
		RealizedPnL:    p.RealizedPnL,
		XP:             p.XP,
		Level:          p.Level,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toPositionResponse(p *domain.Position) positionResponse {
	return positionResponse{
		ID:         p.ID.String(),
		Symbol:     p.Symbol,
		AssetClass: string(p.AssetClass),
		AssetName:  p.AssetName,
		Quantity:   p.Quantity,
		AvgCost:    p.AvgCost,
		Status:     string(p.Status),
		OpenedAt:   p.OpenedAt,
		ClosedAt:   p.ClosedAt,
	}
}

func toPositionResponses(positions []*domain.Position) []positionResponse {
	resp := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		resp = append(resp, toPositionResponse(p))
	}
	return resp
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:          t.ID.String(),
		Type:        string(t.Type),
		Symbol:      t.Symbol,
		AssetClass:  string(t.AssetClass),
		Quantity:    t.Quantity,
		Price:       t.Price,
		Fee:         t.Fee,
		TotalAmount: t.TotalAmount,
		Notes:       t.Notes,
		CreatedAt:   t.CreatedAt,
	}
	if t.PositionID != nil {
		id := t.PositionID.String()
		resp.PositionID = &id
	}
	return resp
}

func toTradeResponse(result *trading.TradeResult, includePnL bool) tradeResponse {
	resp := tradeResponse{
		Portfolio:   toPortfolioResponse(result.Portfolio),
		Position:    toPositionResponse(result.Position),
		Transaction: toTransactionResponse(result.Transaction),
	}
	if includePnL {
		delta := result.RealizedPnLDelta
		resp.RealizedPnLDelta = &delta
	}
	return resp
}
