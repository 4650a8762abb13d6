package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/services"
)

type stubDealService struct {
	saved   bool
	removed bool
	list    []domain.Deal
	feed    services.Feed
	err     error

	gotEmail, gotID string
	gotDeal         domain.Deal
}

func (s *stubDealService) Save(ctx context.Context, email string, deal domain.Deal) (bool, error) {
	s.gotEmail, s.gotDeal = email, deal
	return s.saved, s.err
}

func (s *stubDealService) Unsave(ctx context.Context, email, dealID string) (bool, error) {
	s.gotEmail, s.gotID = email, dealID
	return s.removed, s.err
}

func (s *stubDealService) Saved(ctx context.Context, email string) ([]domain.Deal, error) {
	s.gotEmail = email
	return s.list, s.err
}

func (s *stubDealService) Assemble(ctx context.Context, email string) services.Feed {
	s.gotEmail = email
	return s.feed
}

func dealRouter(svc DealService, authed bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if authed {
		r.Use(asUser("a@x.com"))
	}
	h := NewDeals(svc)
	r.POST("/deals/save", h.Save)
	r.POST("/deals/unsave", h.Unsave)
	r.GET("/deals/saved", h.Saved)
	r.GET("/feed", h.Feed)
	return r
}

func TestDealSaveUnsave_OK(t *testing.T) {
	stub := &stubDealService{saved: true, removed: true}
	r := dealRouter(stub, true)

	w := doJSON(r, http.MethodPost, "/deals/save", SaveDealRequest{Deal: domain.Deal{ID: "d1", Title: "RTX 4070"}})
	if w.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", w.Code, w.Body.String())
	}
	var sr SaveDealResponse
	json.Unmarshal(w.Body.Bytes(), &sr)
	if !sr.Saved || stub.gotDeal.ID != "d1" {
		t.Fatalf("save resp=%+v deal=%+v", sr, stub.gotDeal)
	}

	w = doJSON(r, http.MethodPost, "/deals/unsave", UnsaveDealRequest{ID: "d1"})
	if w.Code != http.StatusOK {
		t.Fatalf("unsave status=%d", w.Code)
	}
	var ur UnsaveDealResponse
	json.Unmarshal(w.Body.Bytes(), &ur)
	if !ur.Removed || stub.gotID != "d1" {
		t.Fatalf("unsave resp=%+v id=%q", ur, stub.gotID)
	}
}

func TestDealSave_MissingID(t *testing.T) {
	r := dealRouter(&stubDealService{err: services.ErrDealMissingID}, true)
	w := doJSON(r, http.MethodPost, "/deals/save", SaveDealRequest{Deal: domain.Deal{Title: "no id"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestDealSavedAndFeed(t *testing.T) {
	stub := &stubDealService{
		list: []domain.Deal{{ID: "d2"}, {ID: "d1"}},
		feed: services.Feed{
			Latest: domain.Deal{Title: "GPU drop"},
			Chart:  []services.ChartPoint{{X: "12:00", Y: 499}},
		},
	}
	r := dealRouter(stub, true)

	w := doJSON(r, http.MethodGet, "/deals/saved", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("saved status=%d", w.Code)
	}
	var list SavedDealsResponse
	json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Deals) != 2 || list.Deals[0].ID != "d2" {
		t.Fatalf("saved=%+v", list)
	}

	w = doJSON(r, http.MethodGet, "/feed", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("feed status=%d", w.Code)
	}
	var feed services.Feed
	json.Unmarshal(w.Body.Bytes(), &feed)
	if feed.Latest.Title != "GPU drop" || len(feed.Chart) != 1 {
		t.Fatalf("feed=%+v", feed)
	}
}

func TestDealEndpoints_RequireSession(t *testing.T) {
	r := dealRouter(&stubDealService{}, false)
	paths := []struct{ method, path string }{
		{http.MethodPost, "/deals/save"},
		{http.MethodPost, "/deals/unsave"},
		{http.MethodGet, "/deals/saved"},
		{http.MethodGet, "/feed"},
	}
	for _, p := range paths {
		if w := doJSON(r, p.method, p.path, gin.H{"id": "d1", "deal": gin.H{"id": "d1"}}); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: status=%d", p.method, p.path, w.Code)
		}
	}
}

func TestDealSaved_StoreError(t *testing.T) {
	r := dealRouter(&stubDealService{err: errors.New("store down")}, true)
	w := doJSON(r, http.MethodGet, "/deals/saved", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != ErrCodeInternal {
		t.Fatalf("code=%q", resp.Code)
	}
}
