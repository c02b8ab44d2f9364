package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/findata/internal/domain"
	"github.com/aristath/findata/internal/services"
)

// DataService is the typed lookup façade the data routes serve.
type DataService interface {
	GetPrices(ctx context.Context, q domain.PriceQuery) (services.Result[[]domain.Price], error)
	GetFinancialMetrics(ctx context.Context, q domain.MetricsQuery) (services.Result[[]domain.FinancialMetrics], error)
	GetCompanyNews(ctx context.Context, q domain.DatedQuery) (services.Result[[]domain.CompanyNews], error)
	GetInsiderTrades(ctx context.Context, q domain.DatedQuery) (services.Result[[]domain.InsiderTrade], error)
	SearchLineItems(ctx context.Context, q domain.LineItemsQuery) (services.Result[[]domain.LineItem], error)
	GetMarketCap(ctx context.Context, ticker, endDate string) (services.Result[*float64], error)
}

// DataHandlers serves financial data lookups over HTTP
type DataHandlers struct {
	data DataService
	now  func() time.Time
	log  zerolog.Logger
}

// NewDataHandlers creates new data handlers
func NewDataHandlers(data DataService, log zerolog.Logger) *DataHandlers {
	return &DataHandlers{
		data: data,
		now:  time.Now,
		log:  log.With().Str("handler", "data").Logger(),
	}
}

// RegisterRoutes registers data routes
func (h *DataHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/prices/{ticker}", h.HandleGetPrices)
	r.Get("/metrics/{ticker}", h.HandleGetMetrics)
	r.Get("/news/{ticker}", h.HandleGetNews)
	r.Get("/insider-trades/{ticker}", h.HandleGetInsiderTrades)
	r.Post("/line-items", h.HandleSearchLineItems)
	r.Get("/market-cap/{ticker}", h.HandleGetMarketCap)
}

// dataResponse is the envelope for every data route.
type dataResponse struct {
	Data      interface{}            `json:"data"`
	State     domain.State           `json:"state"`
	Origin    domain.Layer           `json:"origin"`
	WrittenAt *time.Time             `json:"written_at,omitempty"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// respond writes a resolution. Authoritative absence is a 404 that still
// carries the not_found state.
func respond[T any](h *DataHandlers, w http.ResponseWriter, res services.Result[T], err error) {
	if err != nil {
		h.log.Debug().Err(err).Str("state", string(res.State)).Msg("Lookup failed")
		writeError(h.log, w, err)
		return
	}

	status := http.StatusOK
	if !res.Found() {
		status = http.StatusNotFound
	}

	writeJSON(h.log, w, status, dataResponse{
		Data:      res.Data,
		State:     res.State,
		Origin:    res.Origin,
		WrittenAt: res.WrittenAt,
		Metadata: map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleGetPrices handles GET /api/prices/{ticker}
func (h *DataHandlers) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	if start == "" || end == "" {
		writeError(h.log, w, fmt.Errorf("%w: start_date and end_date are required", domain.ErrInvalidKey))
		return
	}

	res, err := h.data.GetPrices(r.Context(), domain.PriceQuery{
		Ticker:    chi.URLParam(r, "ticker"),
		StartDate: start,
		EndDate:   end,
	})
	respond(h, w, res, err)
}

// HandleGetMetrics handles GET /api/metrics/{ticker}
func (h *DataHandlers) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(h.log, w, err)
		return
	}

	res, err := h.data.GetFinancialMetrics(r.Context(), domain.MetricsQuery{
		Ticker:  chi.URLParam(r, "ticker"),
		EndDate: h.endDate(q.Get("end_date")),
		Period:  q.Get("period"),
		Limit:   limit,
	})
	respond(h, w, res, err)
}

// HandleGetNews handles GET /api/news/{ticker}
func (h *DataHandlers) HandleGetNews(w http.ResponseWriter, r *http.Request) {
	query, err := h.datedQuery(r)
	if err != nil {
		writeError(h.log, w, err)
		return
	}

	res, err := h.data.GetCompanyNews(r.Context(), query)
	respond(h, w, res, err)
}

// HandleGetInsiderTrades handles GET /api/insider-trades/{ticker}
func (h *DataHandlers) HandleGetInsiderTrades(w http.ResponseWriter, r *http.Request) {
	query, err := h.datedQuery(r)
	if err != nil {
		writeError(h.log, w, err)
		return
	}

	res, err := h.data.GetInsiderTrades(r.Context(), query)
	respond(h, w, res, err)
}

// LineItemsRequest is the body of POST /api/line-items.
type LineItemsRequest struct {
	Ticker    string   `json:"ticker"`
	LineItems []string `json:"line_items"`
	EndDate   string   `json:"end_date"`
	Period    string   `json:"period"`
	Limit     int      `json:"limit"`
}

// HandleSearchLineItems handles POST /api/line-items
func (h *DataHandlers) HandleSearchLineItems(w http.ResponseWriter, r *http.Request) {
	var req LineItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.log, w, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidKey, err))
		return
	}

	res, err := h.data.SearchLineItems(r.Context(), domain.LineItemsQuery{
		Ticker:    req.Ticker,
		LineItems: req.LineItems,
		EndDate:   h.endDate(req.EndDate),
		Period:    req.Period,
		Limit:     req.Limit,
	})
	respond(h, w, res, err)
}

// HandleGetMarketCap handles GET /api/market-cap/{ticker}
func (h *DataHandlers) HandleGetMarketCap(w http.ResponseWriter, r *http.Request) {
	res, err := h.data.GetMarketCap(r.Context(), chi.URLParam(r, "ticker"), h.endDate(r.URL.Query().Get("end_date")))
	respond(h, w, res, err)
}

func (h *DataHandlers) datedQuery(r *http.Request) (domain.DatedQuery, error) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		return domain.DatedQuery{}, err
	}
	return domain.DatedQuery{
		Ticker:    chi.URLParam(r, "ticker"),
		StartDate: q.Get("start_date"),
		EndDate:   h.endDate(q.Get("end_date")),
		Limit:     limit,
	}, nil
}

// endDate defaults a missing end date to today.
func (h *DataHandlers) endDate(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return h.now().Format(time.DateOnly)
}

func parseLimit(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit %q", domain.ErrInvalidKey, v)
	}
	return n, nil
}
