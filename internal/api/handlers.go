package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wakala/mpesa-analytics/internal/currency"
	"github.com/wakala/mpesa-analytics/internal/domain"
	"github.com/wakala/mpesa-analytics/internal/repository"
	"github.com/wakala/mpesa-analytics/internal/scheduler"
)

// Runner starts pipeline executions on demand.
type Runner interface {
	TriggerAsync(ctx context.Context) error
	Running() bool
	LastRun() *scheduler.RunStatus
}

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	txns      repository.TransactionStore
	summaries repository.SummaryStore
	alerts    repository.AlertStore
	ping      func(ctx context.Context) error
	runner    Runner
	log       zerolog.Logger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("encode error")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	h.writeError(w, http.StatusInternalServerError, "internal error")
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(domain.DateLayout, s)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func validDate(s string) bool {
	_, err := time.Parse(domain.DateLayout, s)
	return err == nil
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.log.Warn().Err(err).Msg("health check failed")
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- ListTransactions ---

func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TransactionFilter{
		Status:          q.Get("status"),
		TransactionType: q.Get("type"),
		Region:          q.Get("region"),
		FraudCategory:   q.Get("fraud_category"),
		Sender:          q.Get("sender"),
		SuspiciousOnly:  q.Get("suspicious") == "true",
		From:            parseTime(q.Get("from")),
		To:              parseTime(q.Get("to")),
		Page:            parseIntDefault(q.Get("page"), 1),
		Limit:           parseIntDefault(q.Get("limit"), 50),
	}

	txns, total, err := h.txns.List(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        total,
		"page":         filter.Page,
		"limit":        filter.Limit,
	})
}

// --- GetTransaction ---

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tx, err := h.txns.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// --- Summaries ---

func (h *Handlers) ListSummaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.SummaryFilter{
		From:  q.Get("from"),
		To:    q.Get("to"),
		Page:  parseIntDefault(q.Get("page"), 1),
		Limit: parseIntDefault(q.Get("limit"), 50),
	}
	if (filter.From != "" && !validDate(filter.From)) || (filter.To != "" && !validDate(filter.To)) {
		h.writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD")
		return
	}

	summaries, total, err := h.summaries.List(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"summaries": summaries,
		"total":     total,
		"page":      filter.Page,
		"limit":     filter.Limit,
	})
}

func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if !validDate(date) {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	summary, err := h.summaries.GetByDate(r.Context(), date)
	if errors.Is(err, domain.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no summary for "+date)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// --- ListAlerts ---

func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.AlertFilter{
		Status:   q.Get("status"),
		MinScore: int64(parseIntDefault(q.Get("min_score"), 0)),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	alerts, total, err := h.alerts.List(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

// --- GetDashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.txns.GetDashboardStats(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	regions, err := h.txns.GetVolumeByRegion(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	// Amounts are stored in KES.
	totalUSD, err := currency.ToUSD(stats.TotalAmount, "KES")
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	dashboard := map[string]any{
		"period": map[string]string{
			"from": stats.FirstTransactionDay,
			"to":   stats.LastTransactionDay,
		},
		"transactions": map[string]int{
			"total":               stats.TotalTransactions,
			"successful":          stats.Successful,
			"failed":              stats.Failed,
			"unique_users":        stats.UniqueUsers,
			"high_risk":           stats.HighRisk,
			"suspicious_velocity": stats.SuspiciousVelocity,
		},
		"volume": map[string]any{
			"total_kes":     stats.TotalAmount.StringFixed(2),
			"total_fees":    stats.TotalFees.StringFixed(2),
			"total_usd_est": totalUSD.StringFixed(2),
		},
		"open_alerts": stats.OpenAlerts,
		"by_region":   regions,
	}

	h.writeJSON(w, http.StatusOK, dashboard)
}

// --- Runs ---

func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		h.writeError(w, http.StatusServiceUnavailable, "pipeline runner not configured")
		return
	}

	err := h.runner.TriggerAsync(r.Context())
	if errors.Is(err, domain.ErrRunInProgress) {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handlers) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		h.writeError(w, http.StatusServiceUnavailable, "pipeline runner not configured")
		return
	}

	last := h.runner.LastRun()
	if last == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "no run has finished yet",
			"running": h.runner.Running(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"running": h.runner.Running(),
		"last":    last,
	})
}
