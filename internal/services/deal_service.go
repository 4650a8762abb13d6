// Package services – DealService
//
// This file implements DealService, which owns the deal lists: the
// per-user saved list, the per-user scan result history, the global deal
// feed written by the scanning worker, and the aggregated dashboard
// feed. Every list is capped by trimming inside the same commit as the
// prepend, so caps hold even under concurrent writers.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/store"
)

// List caps. Newest entries survive; the tail is trimmed away.
const (
	maxSavedDeals    = 50
	maxGlobalHistory = 20
	maxUserHistory   = 10
	maxFeedDeals     = 10
)

// systemOwner marks worker finds that belong to the global feed rather
// than to one user's scan.
const systemOwner = "system"

// ingestHeartbeat is the record type the worker sends to refresh the
// liveness marker.
const ingestHeartbeat = "heartbeat"

// IngestRecord is the payload the scanning worker posts: either a
// heartbeat or a deal find.
type IngestRecord struct {
	Type       string `json:"type"`
	Price      string `json:"price"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Store      string `json:"store"`
	Opinion    string `json:"opinion"`
	Score      int    `json:"score"`
	Forecast   string `json:"forecast"`
	OwnerEmail string `json:"ownerEmail"`
}

// ChartPoint is one reading on the dashboard price chart.
type ChartPoint struct {
	X     string  `json:"x"`
	Y     float64 `json:"y"`
	Title string  `json:"title"`
}

// Feed is the aggregated dashboard view for one identity: the latest
// worker find, the merged deal history, the identity's own scan results
// and saved list, the worker liveness marker, and the chart series.
type Feed struct {
	Latest       domain.Deal          `json:"latest"`
	History      []domain.Deal        `json:"history"`
	UserHistory  []domain.Deal        `json:"userHistory"`
	Saved        []domain.Deal        `json:"saved"`
	SystemStatus *domain.SystemStatus `json:"systemStatus"`
	Chart        []ChartPoint         `json:"chart"`
}

// DealService owns saved deals, ingestion, and the dashboard feed.
type DealService struct {
	Store store.Store

	// Now is a clock seam for tests; nil means time.Now.
	Now func() time.Time
	// NewID mints deal identifiers; nil means uuid.NewString.
	NewID func() string
}

// Save adds the deal to the identity's saved list, newest first, keeping
// at most 50 entries. It reports false without writing when a deal with
// the same identifier is already saved.
func (s *DealService) Save(ctx context.Context, email string, deal domain.Deal) (bool, error) {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Save",
		trace.WithAttributes(attribute.String("deal.id", deal.ID)),
	)
	defer span.End()

	if strings.TrimSpace(deal.ID) == "" {
		return false, ErrDealMissingID
	}

	key := store.SavedScansKey(email)
	saved, err := s.readDeals(ctx, key)
	if err != nil {
		return false, fmt.Errorf("deals: load saved list: %w", err)
	}
	for _, d := range saved {
		if d.ID == deal.ID {
			return false, nil
		}
	}

	payload, err := json.Marshal(deal)
	if err != nil {
		return false, fmt.Errorf("deals: marshal deal: %w", err)
	}
	err = s.Store.Atomic(ctx, func(tx store.Tx) error {
		tx.PushFront(key, string(payload))
		tx.Trim(key, 0, maxSavedDeals-1)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("deals: save: %w", err)
	}
	return true, nil
}

// Unsave removes the deal with the given identifier from the saved list.
// It reports false without writing when no entry matches. The list is
// rewritten in one commit so concurrent readers never see it half-gone.
func (s *DealService) Unsave(ctx context.Context, email, dealID string) (bool, error) {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Unsave",
		trace.WithAttributes(attribute.String("deal.id", dealID)),
	)
	defer span.End()

	if strings.TrimSpace(dealID) == "" {
		return false, ErrDealMissingID
	}

	key := store.SavedScansKey(email)
	raw, err := s.Store.Range(ctx, key, 0, -1)
	if err != nil {
		return false, fmt.Errorf("deals: load saved list: %w", err)
	}

	kept := make([]string, 0, len(raw))
	removed := false
	for _, item := range raw {
		var d domain.Deal
		if err := json.Unmarshal([]byte(item), &d); err == nil && d.ID == dealID {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return false, nil
	}

	err = s.Store.Atomic(ctx, func(tx store.Tx) error {
		tx.Delete(key)
		if len(kept) > 0 {
			tx.PushBack(key, kept...)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("deals: unsave: %w", err)
	}
	return true, nil
}

// Saved returns the identity's saved deals, newest first. Corrupt
// entries are skipped, not fatal.
func (s *DealService) Saved(ctx context.Context, email string) ([]domain.Deal, error) {
	deals, err := s.readDeals(ctx, store.SavedScansKey(email))
	if err != nil {
		return nil, fmt.Errorf("deals: load saved list: %w", err)
	}
	return deals, nil
}

// Ingest accepts one worker record. Heartbeats refresh the liveness
// marker; deal finds are normalized, defaulted, and routed to either the
// global feed (system finds) or the owner's scan history.
func (s *DealService) Ingest(ctx context.Context, rec IngestRecord) (*domain.Deal, error) {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(attribute.String("ingest.type", rec.Type)),
	)
	defer span.End()

	now := s.now().UnixMilli()

	if rec.Type == ingestHeartbeat {
		status := domain.SystemStatus{Status: "online", Timestamp: now}
		if err := s.Store.SetJSON(ctx, store.SystemStatusKey, status, 0); err != nil {
			return nil, fmt.Errorf("deals: heartbeat: %w", err)
		}
		return nil, nil
	}

	if strings.TrimSpace(rec.Price) == "" || strings.TrimSpace(rec.Opinion) == "" {
		return nil, ErrMissingDealFields
	}

	deal := domain.Deal{
		ID:         s.newID(),
		Price:      rec.Price,
		Title:      defaultStr(rec.Title, "Unknown Product"),
		URL:        defaultStr(rec.URL, "#"),
		Store:      defaultStr(rec.Store, "WEB"),
		Opinion:    rec.Opinion,
		Score:      rec.Score,
		Forecast:   rec.Forecast,
		Type:       defaultStr(rec.Type, "HW"),
		OwnerEmail: defaultStr(rec.OwnerEmail, systemOwner),
		Timestamp:  now,
	}
	if deal.Score == 0 {
		deal.Score = 50
	}

	payload, err := json.Marshal(deal)
	if err != nil {
		return nil, fmt.Errorf("deals: marshal deal: %w", err)
	}

	if deal.OwnerEmail == systemOwner {
		err = s.Store.Atomic(ctx, func(tx store.Tx) error {
			if err := tx.SetJSON(store.LatestDealKey, deal); err != nil {
				return err
			}
			tx.PushFront(store.DealHistoryKey, string(payload))
			tx.Trim(store.DealHistoryKey, 0, maxGlobalHistory-1)
			return nil
		})
	} else {
		key := store.UserHistoryKey(deal.OwnerEmail)
		err = s.Store.Atomic(ctx, func(tx store.Tx) error {
			tx.PushFront(key, string(payload))
			tx.Trim(key, 0, maxUserHistory-1)
			return nil
		})
	}
	if err != nil {
		return nil, fmt.Errorf("deals: ingest: %w", err)
	}
	return &deal, nil
}

// Assemble builds the dashboard feed for one identity. Each part
// degrades independently: a failed read logs a warning and leaves that
// part empty or placeholdered rather than failing the whole feed.
func (s *DealService) Assemble(ctx context.Context, email string) Feed {
	tr := otel.Tracer("services/DealService")
	ctx, span := tr.Start(ctx, "Assemble")
	defer span.End()

	feed := Feed{
		Latest:      domain.Deal{Price: "---", Opinion: "No data", Score: 50},
		History:     []domain.Deal{},
		UserHistory: []domain.Deal{},
		Saved:       []domain.Deal{},
		Chart:       []ChartPoint{},
	}

	var latest domain.Deal
	if ok, err := s.Store.GetJSON(ctx, store.LatestDealKey, &latest); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("feed latest deal load failed")
	} else if ok {
		feed.Latest = latest
	}

	mine, err := s.readDeals(ctx, store.UserHistoryKey(email))
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("feed user history load failed")
	} else if mine != nil {
		feed.UserHistory = mine
	}
	global, err := s.readDeals(ctx, store.DealHistoryKey)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("feed global history load failed")
	}

	saved, err := s.readDeals(ctx, store.SavedScansKey(email))
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("feed saved list load failed")
	} else if saved != nil {
		feed.Saved = saved
	}

	var status domain.SystemStatus
	if ok, err := s.Store.GetJSON(ctx, store.SystemStatusKey, &status); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("feed system status load failed")
	} else if ok {
		feed.SystemStatus = &status
	}

	merged := make([]domain.Deal, 0, len(mine)+len(global))
	merged = append(merged, mine...)
	merged = append(merged, global...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})

	// Chart runs oldest to newest so the line reads left to right. It
	// spans the whole merged window, not just the history page below.
	for i := len(merged) - 1; i >= 0; i-- {
		d := merged[i]
		feed.Chart = append(feed.Chart, ChartPoint{
			X:     time.UnixMilli(d.Timestamp).UTC().Format("15:04"),
			Y:     parsePrice(d.Price),
			Title: d.Title,
		})
	}

	if len(merged) > maxFeedDeals {
		merged = merged[:maxFeedDeals]
	}
	feed.History = merged
	return feed
}

// readDeals loads and decodes a deal list, skipping corrupt entries.
func (s *DealService) readDeals(ctx context.Context, key string) ([]domain.Deal, error) {
	raw, err := s.Store.Range(ctx, key, 0, -1)
	if err != nil {
		return nil, err
	}
	deals := make([]domain.Deal, 0, len(raw))
	for _, item := range raw {
		var d domain.Deal
		if err := json.Unmarshal([]byte(item), &d); err != nil {
			log.Ctx(ctx).Warn().Str("key", key).Msg("skipping corrupt deal entry")
			continue
		}
		deals = append(deals, d)
	}
	return deals, nil
}

// parsePrice extracts a numeric reading from localized price text
// ("1.299,90 €"). Commas become decimal points, everything outside
// digits and dots is dropped, and the longest parseable prefix wins.
// Unparseable prices chart as zero.
func parsePrice(price string) float64 {
	price = strings.ReplaceAll(price, ",", ".")
	var b strings.Builder
	for _, r := range price {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	for i := len(cleaned); i > 0; i-- {
		if v, err := strconv.ParseFloat(cleaned[:i], 64); err == nil {
			return v
		}
	}
	return 0
}

func defaultStr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func (s *DealService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *DealService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
