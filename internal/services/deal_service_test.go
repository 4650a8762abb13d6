package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/store"
)

func newDealService(mem *store.Memory, at time.Time) *DealService {
	n := 0
	return &DealService{
		Store: mem,
		Now:   fixedClock(at),
		NewID: func() string {
			n++
			return fmt.Sprintf("deal-%d", n)
		},
	}
}

func TestSaveAndUnsave(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := newDealService(mem, time.Now())

	first := domain.Deal{ID: "d1", Title: "RTX 4070", Price: "499"}
	second := domain.Deal{ID: "d2", Title: "NVMe 2TB", Price: "89"}

	if added, err := s.Save(ctx, "a@x.com", first); err != nil || !added {
		t.Fatalf("Save first: added=%v err=%v", added, err)
	}
	if added, err := s.Save(ctx, "a@x.com", second); err != nil || !added {
		t.Fatalf("Save second: added=%v err=%v", added, err)
	}
	// Saving the same identifier again is a no-op.
	if added, err := s.Save(ctx, "a@x.com", first); err != nil || added {
		t.Fatalf("duplicate Save: added=%v err=%v", added, err)
	}

	saved, err := s.Saved(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Saved: %v", err)
	}
	if len(saved) != 2 || saved[0].ID != "d2" || saved[1].ID != "d1" {
		t.Fatalf("saved = %+v", saved)
	}

	if removed, err := s.Unsave(ctx, "a@x.com", "d1"); err != nil || !removed {
		t.Fatalf("Unsave: removed=%v err=%v", removed, err)
	}
	if removed, err := s.Unsave(ctx, "a@x.com", "d1"); err != nil || removed {
		t.Fatalf("second Unsave: removed=%v err=%v", removed, err)
	}
	saved, _ = s.Saved(ctx, "a@x.com")
	if len(saved) != 1 || saved[0].ID != "d2" {
		t.Fatalf("after unsave = %+v", saved)
	}
}

func TestSave_CapHolds(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := newDealService(mem, time.Now())

	for i := 0; i < maxSavedDeals+5; i++ {
		deal := domain.Deal{ID: fmt.Sprintf("d%d", i), Price: "10"}
		if _, err := s.Save(ctx, "a@x.com", deal); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	saved, _ := s.Saved(ctx, "a@x.com")
	if len(saved) != maxSavedDeals {
		t.Fatalf("len = %d, want %d", len(saved), maxSavedDeals)
	}
	if saved[0].ID != fmt.Sprintf("d%d", maxSavedDeals+4) {
		t.Fatalf("newest = %q", saved[0].ID)
	}
}

func TestSaveUnsave_MissingID(t *testing.T) {
	s := newDealService(store.NewMemory(), time.Now())
	if _, err := s.Save(context.Background(), "a@x.com", domain.Deal{}); !errors.Is(err, ErrDealMissingID) {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Unsave(context.Background(), "a@x.com", "  "); !errors.Is(err, ErrDealMissingID) {
		t.Fatalf("Unsave: %v", err)
	}
}

func TestIngest_Heartbeat(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newDealService(mem, at)

	deal, err := s.Ingest(ctx, IngestRecord{Type: "heartbeat"})
	if err != nil || deal != nil {
		t.Fatalf("Ingest: deal=%v err=%v", deal, err)
	}
	var status domain.SystemStatus
	if ok, _ := mem.GetJSON(ctx, store.SystemStatusKey, &status); !ok {
		t.Fatalf("status not written")
	}
	if status.Status != "online" || status.Timestamp != at.UnixMilli() {
		t.Fatalf("status = %+v", status)
	}
}

func TestIngest_SystemDealDefaults(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newDealService(mem, at)

	deal, err := s.Ingest(ctx, IngestRecord{Price: "199,99 €", Opinion: "Solid price"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if deal.ID != "deal-1" || deal.Title != "Unknown Product" || deal.URL != "#" ||
		deal.Store != "WEB" || deal.Score != 50 || deal.Type != "HW" ||
		deal.OwnerEmail != "system" || deal.Timestamp != at.UnixMilli() {
		t.Fatalf("deal = %+v", deal)
	}

	var latest domain.Deal
	if ok, _ := mem.GetJSON(ctx, store.LatestDealKey, &latest); !ok || latest.ID != "deal-1" {
		t.Fatalf("latest = %+v", latest)
	}
	global, _ := s.readDeals(ctx, store.DealHistoryKey)
	if len(global) != 1 || global[0].ID != "deal-1" {
		t.Fatalf("global history = %+v", global)
	}
}

func TestIngest_OwnedDeal(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := newDealService(mem, time.Now())

	deal, err := s.Ingest(ctx, IngestRecord{
		Price: "899", Opinion: "Below market", Title: "RX 7900 XT",
		OwnerEmail: "a@x.com", Score: 82, Type: "GPU",
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if deal.Score != 82 || deal.Type != "GPU" {
		t.Fatalf("deal = %+v", deal)
	}

	mine, _ := s.readDeals(ctx, store.UserHistoryKey("a@x.com"))
	if len(mine) != 1 || mine[0].Title != "RX 7900 XT" {
		t.Fatalf("user history = %+v", mine)
	}
	// Owned finds stay out of the global feed.
	if ok, _ := mem.GetJSON(ctx, store.LatestDealKey, &domain.Deal{}); ok {
		t.Fatalf("owned deal leaked into the global feed")
	}
}

func TestIngest_MissingFields(t *testing.T) {
	s := newDealService(store.NewMemory(), time.Now())
	if _, err := s.Ingest(context.Background(), IngestRecord{Price: "10"}); !errors.Is(err, ErrMissingDealFields) {
		t.Fatalf("missing opinion: %v", err)
	}
	if _, err := s.Ingest(context.Background(), IngestRecord{Opinion: "ok"}); !errors.Is(err, ErrMissingDealFields) {
		t.Fatalf("missing price: %v", err)
	}
}

func TestAssemble_EmptyState(t *testing.T) {
	s := newDealService(store.NewMemory(), time.Now())
	feed := s.Assemble(context.Background(), "a@x.com")
	if feed.Latest.Price != "---" || feed.Latest.Opinion != "No data" || feed.Latest.Score != 50 {
		t.Fatalf("placeholder = %+v", feed.Latest)
	}
	if len(feed.History) != 0 || len(feed.UserHistory) != 0 || len(feed.Saved) != 0 || len(feed.Chart) != 0 {
		t.Fatalf("feed = %+v", feed)
	}
	if feed.SystemStatus != nil {
		t.Fatalf("status before any heartbeat = %+v", feed.SystemStatus)
	}
}

func TestAssemble_MergesAndCharts(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newDealService(mem, base)

	s.Ingest(ctx, IngestRecord{Price: "100", Opinion: "ok", Title: "first"})
	s.Now = fixedClock(base.Add(time.Minute))
	s.Ingest(ctx, IngestRecord{Price: "1.299,90 €", Opinion: "ok", Title: "mine", OwnerEmail: "a@x.com"})
	s.Now = fixedClock(base.Add(2 * time.Minute))
	s.Ingest(ctx, IngestRecord{Price: "200", Opinion: "ok", Title: "second"})

	feed := s.Assemble(ctx, "a@x.com")
	if feed.Latest.Title != "second" {
		t.Fatalf("latest = %+v", feed.Latest)
	}
	if len(feed.History) != 3 ||
		feed.History[0].Title != "second" || feed.History[1].Title != "mine" || feed.History[2].Title != "first" {
		t.Fatalf("history = %+v", feed.History)
	}
	if len(feed.UserHistory) != 1 || feed.UserHistory[0].Title != "mine" {
		t.Fatalf("user history = %+v", feed.UserHistory)
	}

	// Chart runs oldest to newest.
	if len(feed.Chart) != 3 || feed.Chart[0].Title != "first" || feed.Chart[2].Title != "second" {
		t.Fatalf("chart = %+v", feed.Chart)
	}
	if feed.Chart[0].X != "12:00" || feed.Chart[1].X != "12:01" {
		t.Fatalf("chart times = %+v", feed.Chart)
	}
	if feed.Chart[1].Y != 1.299 {
		t.Fatalf("localized price parsed as %v", feed.Chart[1].Y)
	}

	// Another identity sees only the global finds.
	other := s.Assemble(ctx, "b@x.com")
	if len(other.History) != 2 {
		t.Fatalf("other history = %+v", other.History)
	}
}

func TestAssemble_BundlesSavedAndStatus(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newDealService(mem, at)

	if _, err := s.Ingest(ctx, IngestRecord{Type: "heartbeat"}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if _, err := s.Save(ctx, "a@x.com", domain.Deal{ID: "d1", Title: "RTX 4070", Price: "499"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	feed := s.Assemble(ctx, "a@x.com")
	if len(feed.Saved) != 1 || feed.Saved[0].ID != "d1" {
		t.Fatalf("saved = %+v", feed.Saved)
	}
	if feed.SystemStatus == nil {
		t.Fatalf("no system status in feed")
	}
	if feed.SystemStatus.Status != "online" || feed.SystemStatus.Timestamp != at.UnixMilli() {
		t.Fatalf("status = %+v", feed.SystemStatus)
	}

	// The saved list stays per identity.
	other := s.Assemble(ctx, "b@x.com")
	if len(other.Saved) != 0 {
		t.Fatalf("other saved = %+v", other.Saved)
	}
	if other.SystemStatus == nil {
		t.Fatalf("liveness is global, should reach every identity")
	}
}

func TestAssemble_ChartSpansFullMergedWindow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newDealService(mem, base)

	for i := 0; i < maxFeedDeals+4; i++ {
		s.Now = fixedClock(base.Add(time.Duration(i) * time.Minute))
		if _, err := s.Ingest(ctx, IngestRecord{Price: "100", Opinion: "ok", Title: fmt.Sprintf("find-%d", i)}); err != nil {
			t.Fatalf("Ingest %d: %v", i, err)
		}
	}

	feed := s.Assemble(ctx, "a@x.com")
	if len(feed.History) != maxFeedDeals {
		t.Fatalf("history len = %d, want %d", len(feed.History), maxFeedDeals)
	}
	// The chart keeps the older readings the history page drops.
	if len(feed.Chart) != maxFeedDeals+4 {
		t.Fatalf("chart len = %d, want %d", len(feed.Chart), maxFeedDeals+4)
	}
	if feed.Chart[0].Title != "find-0" || feed.Chart[0].X != "12:00" {
		t.Fatalf("chart start = %+v", feed.Chart[0])
	}
	last := feed.Chart[len(feed.Chart)-1]
	if last.Title != fmt.Sprintf("find-%d", maxFeedDeals+3) {
		t.Fatalf("chart end = %+v", last)
	}
}

func TestParsePrice(t *testing.T) {
	for in, want := range map[string]float64{
		"499.99":     499.99,
		"1.299,90 €": 1.299,
		"1,5":        1.5,
		"ab 249 EUR": 249,
		"free":       0,
		"":           0,
	} {
		if got := parsePrice(in); got != want {
			t.Fatalf("parsePrice(%q) = %v, want %v", in, got, want)
		}
	}
}
