package web

import (
	"context"
	"encoding/json"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/onemorebsmith/zdt/src/common"
	"github.com/onemorebsmith/zdt/src/model"
	"github.com/onemorebsmith/zdt/src/postgres"
	"github.com/onemorebsmith/zdt/src/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const summaryCacheKey = "zdt:summary"

type SummaryResponse struct {
	TotalDonations string  `json:"total_donations"`
	TxCount        int     `json:"tx_count"`
	LastUpdated    *string `json:"last_updated"`
}

type TransactionResponse struct {
	Date          *string `json:"date"`
	Amount        string  `json:"amount"`
	Confirmations int     `json:"confirmations"`
	TxIDShort     string  `json:"txid_short"`
	Memo          *string `json:"memo"`
}

type RecentResponse struct {
	Count        int                   `json:"count"`
	Transactions []TransactionResponse `json:"transactions"`
}

type Server struct {
	store    *store.DonationStore
	cache    *redis.Client // nil disables caching
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewServer(donations *store.DonationStore, cache *redis.Client, cacheTTL time.Duration,
	logger *zap.Logger) *Server {
	return &Server{
		store:    donations,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   common.ComponentLogger(logger, "web"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/summary", s.handleSummary)
	mux.HandleFunc("/last-transactions", s.handleRecent)
	mux.HandleFunc("/readyz", s.handleReadyz)
	return mux
}

func (s *Server) ListenAndServe(port string) error {
	s.logger.Info("serving donation api on " + port)
	return http.ListenAndServe(port, s.Handler())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if cached := s.cachedSummary(r.Context(), r.URL.Query().Get("refresh") == "true"); cached != nil {
		writeJSONRaw(w, cached)
		return
	}

	resp := BuildSummaryResponse(s.store.Summary())
	payload, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.storeCachedSummary(r.Context(), payload)
	writeJSONRaw(w, payload)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultRecentLimit
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	recent := s.store.Recent(limit)
	resp := RecentResponse{
		Count:        len(recent),
		Transactions: make([]TransactionResponse, 0, len(recent)),
	}
	for _, d := range recent {
		resp.Transactions = append(resp.Transactions, buildTransactionResponse(d))
	}
	writeJSON(w, resp)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	pg, err := postgres.GetConnection(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(errors.Wrap(err, "failed pinging postgres").Error()))
		return
	}
	defer pg.Close(r.Context())
	if err := pg.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(errors.Wrap(err, "failed pinging postgres").Error()))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) cachedSummary(ctx context.Context, refresh bool) []byte {
	if s.cache == nil || refresh {
		return nil
	}
	cached, err := s.cache.Get(ctx, summaryCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("failed reading summary cache", zap.Error(err))
		}
		return nil
	}
	return cached
}

func (s *Server) storeCachedSummary(ctx context.Context, payload []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, summaryCacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("failed writing summary cache", zap.Error(err))
	}
}

func BuildSummaryResponse(summary model.Summary) SummaryResponse {
	resp := SummaryResponse{
		TotalDonations: summary.TotalAmount.StringFixed(8),
		TxCount:        summary.TxCount,
	}
	if summary.LastUpdated != nil {
		updated := summary.LastUpdated.Format(time.RFC3339)
		resp.LastUpdated = &updated
	}
	return resp
}

func buildTransactionResponse(d model.Donation) TransactionResponse {
	resp := TransactionResponse{
		Amount:        d.Amount.StringFixed(8),
		Confirmations: d.Confirmations,
		TxIDShort:     ShortTxID(d.TxID),
		Memo:          d.Memo,
	}
	if d.Timestamp != nil {
		date := d.Timestamp.Format(time.RFC3339)
		resp.Date = &date
	}
	return resp
}

// ShortTxID elides the middle of the identifier so public reports can't be
// trivially joined against full-chain lookups
func ShortTxID(txid string) string {
	if len(txid) <= 16 {
		return txid
	}
	return txid[:8] + "..." + txid[len(txid)-8:]
}

func writeJSON(w http.ResponseWriter, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONRaw(w, payload)
}

func writeJSONRaw(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}
