// Package handler exposes the ledger over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"japa/internal/ledger"
	"japa/internal/platform/secrets"
	id "japa/pkg/domain"
	dErrors "japa/pkg/domain-errors"
	"japa/pkg/platform/httputil"
	"japa/pkg/requestcontext"
)

// Service is the ledger facade surface the HTTP layer depends on.
type Service interface {
	RecordRepetition(ctx context.Context, profileID id.ProfileID, source id.Source, dedupKey string) (ledger.Totals, error)
	Stats(ctx context.Context, profileID id.ProfileID) (ledger.Stats, error)
	ActiveDays(ctx context.Context, profileID id.ProfileID) ([]id.Day, error)
	ReconcileAll(ctx context.Context) (ledger.ReconcileReport, error)
}

// Handler serves the ledger routes.
type Handler struct {
	service Service
	logger  *slog.Logger

	// adminTokenHash guards the reconcile endpoint. Empty disables it.
	adminTokenHash string
}

// NewHandler creates a ledger HTTP handler.
func NewHandler(service Service, logger *slog.Logger, adminTokenHash string) *Handler {
	return &Handler{service: service, logger: logger, adminTokenHash: adminTokenHash}
}

// RegisterRoutes mounts the authenticated ledger routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ledger/repetitions", h.RecordRepetition)
	r.Get("/ledger/stats", h.Stats)
	r.Get("/ledger/active-days", h.ActiveDays)
}

// RegisterAdminRoutes mounts the operator routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/admin/ledger/reconcile", h.Reconcile)
}

// RecordRepetition handles POST /ledger/repetitions. An empty body records
// a manual tap; a JSON body may name the source and a dedup key.
func (h *Handler) RecordRepetition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID := requestcontext.ProfileID(ctx)

	req := recordRepetitionRequest{Source: id.SourceManual.String()}
	if r.ContentLength != 0 {
		var ok bool
		req, ok = httputil.DecodeAndPrepare[recordRepetitionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		if req.Source == "" {
			req.Source = id.SourceManual.String()
		}
	}

	source, err := id.ParseSource(req.Source)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	totals, err := h.service.RecordRepetition(ctx, profileID, source, req.DedupKey)
	if err != nil {
		h.logger.ErrorContext(ctx, "record repetition failed",
			"request_id", requestcontext.RequestID(ctx),
			"profile_id", profileID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, totalsResponse{
		LifetimeCount: totals.LifetimeCount,
		TodayCount:    totals.TodayCount,
	})
}

// Stats handles GET /ledger/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID := requestcontext.ProfileID(ctx)

	stats, err := h.service.Stats(ctx, profileID)
	if err != nil {
		h.logger.ErrorContext(ctx, "stats read failed",
			"request_id", requestcontext.RequestID(ctx),
			"profile_id", profileID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, statsResponse{
		LifetimeCount:  stats.LifetimeCount,
		TodayCount:     stats.TodayCount,
		WeekCount:      stats.WeekCount,
		DailyAverage:   stats.DailyAverage,
		CurrentStreak:  stats.CurrentStreak,
		LongestStreak:  stats.LongestStreak,
		ActiveDayCount: stats.ActiveDayCount,
	})
}

// ActiveDays handles GET /ledger/active-days.
func (h *Handler) ActiveDays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID := requestcontext.ProfileID(ctx)

	days, err := h.service.ActiveDays(ctx, profileID)
	if err != nil {
		h.logger.ErrorContext(ctx, "active days read failed",
			"request_id", requestcontext.RequestID(ctx),
			"profile_id", profileID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := activeDaysResponse{ActiveDays: make([]string, 0, len(days))}
	for _, day := range days {
		resp.ActiveDays = append(resp.ActiveDays, day.String())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Reconcile handles POST /admin/ledger/reconcile. Authenticated by the
// operator token, not a profile token.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.authorizeAdmin(r); err != nil {
		h.logger.WarnContext(ctx, "reconcile rejected",
			"request_id", requestcontext.RequestID(ctx),
			"remote_ip", requestcontext.ClientIP(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	report, err := h.service.ReconcileAll(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "reconcile sweep failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "reconcile sweep finished",
		"profiles_checked", report.ProfilesChecked,
		"mismatches", report.Mismatches,
	)
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) authorizeAdmin(r *http.Request) error {
	if h.adminTokenHash == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "admin endpoint disabled")
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "missing admin token")
	}
	return secrets.Verify(token, h.adminTokenHash)
}
