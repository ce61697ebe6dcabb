package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsim/papertrade-backend/internal/adapter/repository/memory"
	"github.com/finsim/papertrade-backend/internal/usecase/trading"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.NewStore()
	service := trading.NewService(
		memory.NewPortfolioRepository(store),
		memory.NewPositionRepository(store),
		memory.NewTransactionRepository(store),
		memory.NewUnitOfWork(store),
		decimal.NewFromInt(10_000_000),
		zerolog.Nop(),
	)
	return New(Config{
		Port:     0,
		Log:      zerolog.Nop(),
		Trading:  service,
		Resolver: NewJWTResolver(testSecret),
	})
}

func signToken(t *testing.T, ownerID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": ownerID.String()})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, server *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth_NoAuthRequired(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTradingRoutes_RejectMissingToken(t *testing.T) {
	server := newTestServer(t)

	rec := doRequest(t, server, http.MethodGet, "/api/trading/portfolio", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTradingRoutes_RejectForgedToken(t *testing.T) {
	server := newTestServer(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": uuid.New().String()})
	forged, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	rec := doRequest(t, server, http.MethodGet, "/api/trading/portfolio", forged, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetPortfolio_CreatesWithStartingBalance(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, uuid.New())

	rec := doRequest(t, server, http.MethodGet, "/api/trading/portfolio", token, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "10000000", resp.Portfolio.CashBalance.String())
	assert.Empty(t, resp.Positions)
}

func TestBuySellFlow(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, uuid.New())

	// First GET creates the portfolio.
	rec := doRequest(t, server, http.MethodGet, "/api/trading/portfolio", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Buy 10 @ 1000.
	rec = doRequest(t, server, http.MethodPost, "/api/trading/buy", token, buyRequest{
		Symbol:     "AAPL",
		AssetClass: "stock",
		AssetName:  "Apple Inc.",
		Quantity:   decimal.NewFromInt(10),
		Price:      decimal.NewFromInt(1000),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var buyResp tradeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buyResp))
	assert.Equal(t, "9990000", buyResp.Portfolio.CashBalance.String())
	assert.Equal(t, "1000", buyResp.Position.AvgCost.String())
	assert.Nil(t, buyResp.RealizedPnLDelta)

	// Sell 4 @ 1500.
	rec = doRequest(t, server, http.MethodPost, "/api/trading/sell", token, sellRequest{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(4),
		Price:    decimal.NewFromInt(1500),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sellResp tradeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sellResp))
	require.NotNil(t, sellResp.RealizedPnLDelta)
	assert.Equal(t, "2000", sellResp.RealizedPnLDelta.String())
	assert.Equal(t, "6", sellResp.Position.Quantity.String())

	// History holds both trades, oldest first.
	rec = doRequest(t, server, http.MethodGet, "/api/trading/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []transactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "buy", history[0].Type)
	assert.Equal(t, "sell", history[1].Type)

	// One open position remains.
	rec = doRequest(t, server, http.MethodGet, "/api/trading/positions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var positions []positionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
}

func TestBuy_InsufficientFundsReturns400(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, uuid.New())

	doRequest(t, server, http.MethodGet, "/api/trading/portfolio", token, nil)

	rec := doRequest(t, server, http.MethodPost, "/api/trading/buy", token, buyRequest{
		Symbol:     "AAPL",
		AssetClass: "stock",
		Quantity:   decimal.NewFromInt(1),
		Price:      decimal.NewFromInt(20_000_000),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuy_InvalidInputReturns400(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, uuid.New())

	rec := doRequest(t, server, http.MethodPost, "/api/trading/buy", token, buyRequest{
		Symbol:     "AAPL",
		AssetClass: "stock",
		Quantity:   decimal.Zero,
		Price:      decimal.NewFromInt(100),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSell_NoPositionReturns404(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, uuid.New())

	// Portfolio exists but holds nothing.
	doRequest(t, server, http.MethodGet, "/api/trading/portfolio", token, nil)

	rec := doRequest(t, server, http.MethodPost, "/api/trading/sell", token, sellRequest{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuy_NoPortfolioReturns404(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, uuid.New())

	// No prior GET /portfolio, so nothing exists to trade against.
	rec := doRequest(t, server, http.MethodPost, "/api/trading/buy", token, buyRequest{
		Symbol:     "AAPL",
		AssetClass: "stock",
		Quantity:   decimal.NewFromInt(1),
		Price:      decimal.NewFromInt(100),
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSell_NoPortfolioReturns404(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, uuid.New())

	rec := doRequest(t, server, http.MethodPost, "/api/trading/sell", token, sellRequest{
		Symbol:   "AAPL",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(100),
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuy_MalformedBodyReturns400(t *testing.T) {
	server := newTestServer(t)
	token := signToken(t, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/trading/buy", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
