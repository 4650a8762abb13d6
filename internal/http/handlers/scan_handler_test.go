package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/services"
)

type stubScanService struct {
	task *domain.ScanTask
	err  error
	got  services.ScanRequest
}

func (s *stubScanService) Dispatch(ctx context.Context, email string, req services.ScanRequest) (*domain.ScanTask, error) {
	s.got = req
	return s.task, s.err
}

func scanRouter(svc ScanService, authed bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if authed {
		r.Use(asUser("a@x.com"))
	}
	r.POST("/scans", NewScan(svc).Dispatch)
	return r
}

func TestScanDispatch_OK(t *testing.T) {
	stub := &stubScanService{task: &domain.ScanTask{Query: "rtx 4070", Stores: []string{"ebay"}}}
	r := scanRouter(stub, true)

	min := 100.0
	w := doJSON(r, http.MethodPost, "/scans", ScanDispatchRequest{
		Query: "rtx 4070", Stores: []string{"ebay"}, Condition: "used", MinPrice: &min,
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp ScanDispatchResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "queued" || resp.Task.Query != "rtx 4070" {
		t.Fatalf("resp=%+v", resp)
	}
	if stub.got.Condition != "used" || stub.got.MinPrice == nil || *stub.got.MinPrice != 100.0 {
		t.Fatalf("request passed: %+v", stub.got)
	}
}

func TestScanDispatch_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		wantCode string
	}{
		{"quota", &services.QuotaError{Limit: 5, ResetAt: time.Now()}, http.StatusForbidden, ErrCodeLimitReached},
		{"premium stores", &services.PremiumStoreError{Stores: []string{"amazon"}}, http.StatusForbidden, ErrCodePremiumRequired},
		{"bad query", services.ErrInvalidQuery, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := scanRouter(&stubScanService{err: tc.err}, true)
			w := doJSON(r, http.MethodPost, "/scans", ScanDispatchRequest{Query: "ssd"})
			if w.Code != tc.status {
				t.Fatalf("status=%d", w.Code)
			}
			var resp ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Code != tc.wantCode {
				t.Fatalf("code=%q want %q", resp.Code, tc.wantCode)
			}
		})
	}

	// Missing query body -> 400 before the service is called.
	r := scanRouter(&stubScanService{}, true)
	if w := doJSON(r, http.MethodPost, "/scans", gin.H{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing query: %d", w.Code)
	}

	// Anonymous -> 401.
	r = scanRouter(&stubScanService{}, false)
	if w := doJSON(r, http.MethodPost, "/scans", ScanDispatchRequest{Query: "ssd"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d", w.Code)
	}
}
