package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"khata/internal/aggregate"
	"khata/internal/classify"
	"khata/internal/core"
	"khata/internal/ingest"
	"khata/internal/log"
	"khata/internal/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	classifier := classify.New()
	ingester := ingest.New(classifier, store)
	aggregator := aggregate.New(store)
	logger := log.New(log.DefaultConfig())

	srv := NewServer(":0", classifier, ingester, aggregator, store, logger)
	t.Cleanup(func() { srv.cacheMgr.Stop(); srv.rateLimiter.stop() })
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	var parsed map[string]json.RawMessage
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, parsed
}

func success(t *testing.T, parsed map[string]json.RawMessage) bool {
	t.Helper()
	var ok bool
	if err := json.Unmarshal(parsed["success"], &ok); err != nil {
		t.Fatalf("decode success flag: %v", err)
	}
	return ok
}

func TestHandleClassify(t *testing.T) {
	srv, store := newTestServer(t)

	rec, parsed := doJSON(t, srv, http.MethodPost, "/api/classify", classifyRequest{
		SMSText: "Rs 2,450.00 debited from HDFC Bank A/c XX8901 via UPI to SWIGGY. Food order.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !success(t, parsed) {
		t.Fatal("success = false")
	}

	var result core.ClassificationResult
	if err := json.Unmarshal(parsed["classification"], &result); err != nil {
		t.Fatalf("decode classification: %v", err)
	}
	if !result.IsExpense || result.Amount.Paise != 245000 || result.Bank != "HDFC" ||
		result.Mode != core.ModeOnline || result.Category != core.CategoryFood {
		t.Errorf("classification = %+v", result)
	}

	// Classification alone must not persist anything.
	if store.Len() != 0 {
		t.Errorf("store has %d records after classify, want 0", store.Len())
	}
}

func TestHandleClassifyRejectsEmptyText(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, parsed := doJSON(t, srv, http.MethodPost, "/api/classify", classifyRequest{SMSText: "   "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if success(t, parsed) {
		t.Error("success = true for empty text")
	}
}

func TestHandleClassifyRejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestAndReportFlow(t *testing.T) {
	srv, store := newTestServer(t)
	now := time.Now().UTC()

	rec, parsed := doJSON(t, srv, http.MethodPost, "/api/messages", ingestRequest{
		Messages: []core.RawMessage{
			{ID: "sms-1", Body: "Rs 500.00 debited via UPI to Zomato", Sender: "HDFCBK", ReceivedAt: now},
			{ID: "sms-2", Body: "Special offer! Click link for a discount", Sender: "PROMO", ReceivedAt: now},
			{ID: "sms-3", Body: "INR 1,200 spent on your ICICI credit card at Amazon", Sender: "ICICIB", ReceivedAt: now},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result ingest.Result
	if err := json.Unmarshal(parsed["result"], &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Received != 3 || result.Expenses != 2 || result.Discarded != 1 {
		t.Errorf("result = %+v", result)
	}
	if store.Len() != 2 {
		t.Errorf("store has %d records, want 2", store.Len())
	}

	// Summary over the current month sees both expenses.
	rec, parsed = doJSON(t, srv, http.MethodGet, "/api/summary?period=current_month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	var summary aggregate.Summary
	if err := json.Unmarshal(parsed["summary"], &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TransactionCount != 2 || summary.TotalExpenses.Paise != 170000 {
		t.Errorf("summary = %+v", summary)
	}

	rec, parsed = doJSON(t, srv, http.MethodGet, "/api/dashboard?period=current_month", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}
	var dashboard aggregate.Dashboard
	if err := json.Unmarshal(parsed["dashboard"], &dashboard); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dashboard.Summary.TransactionCount != 2 {
		t.Errorf("dashboard summary = %+v", dashboard.Summary)
	}
}

func TestSummaryCacheInvalidatedByIngest(t *testing.T) {
	srv, _ := newTestServer(t)
	now := time.Now().UTC()

	// Prime the cache with an empty summary.
	_, parsed := doJSON(t, srv, http.MethodGet, "/api/summary?period=current_month", nil)
	var before aggregate.Summary
	if err := json.Unmarshal(parsed["summary"], &before); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if before.TransactionCount != 0 {
		t.Fatalf("expected empty summary, got %+v", before)
	}

	doJSON(t, srv, http.MethodPost, "/api/messages", ingestRequest{
		Messages: []core.RawMessage{
			{ID: "sms-1", Body: "Rs 500.00 debited via UPI to Zomato", ReceivedAt: now},
		},
	})

	_, parsed = doJSON(t, srv, http.MethodGet, "/api/summary?period=current_month", nil)
	var after aggregate.Summary
	if err := json.Unmarshal(parsed["summary"], &after); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if after.TransactionCount != 1 {
		t.Errorf("summary after ingest = %+v, cache not invalidated", after)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	srv, _ := newTestServer(t)
	now := time.Now().UTC()

	doJSON(t, srv, http.MethodPost, "/api/messages", ingestRequest{
		Messages: []core.RawMessage{
			{ID: "sms-1", Body: "Rs 500.00 debited via UPI to Zomato", ReceivedAt: now},
			{ID: "sms-2", Body: "Rs 900 spent at Apollo pharmacy via debit card", ReceivedAt: now},
		},
	})

	rec, parsed := doJSON(t, srv, http.MethodGet, "/api/transactions?period=current_month&category=Food", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var records []core.TransactionRecord
	if err := json.Unmarshal(parsed["transactions"], &records); err != nil {
		t.Fatalf("decode transactions: %v", err)
	}
	if len(records) != 1 || records[0].MessageID != "sms-1" {
		t.Errorf("filtered records = %+v", records)
	}

	rec, _ = doJSON(t, srv, http.MethodGet, "/api/transactions?category=bogus", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown category status = %d, want 422", rec.Code)
	}
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	srv, store := newTestServer(t)
	now := time.Now().UTC()

	doJSON(t, srv, http.MethodPost, "/api/messages", ingestRequest{
		Messages: []core.RawMessage{
			{ID: "sms-1", Body: "Rs 500.00 debited via UPI to Zomato", ReceivedAt: now},
		},
	})
	records, err := store.List(context.Background(), core.ListFilter{})
	if err != nil || len(records) != 1 {
		t.Fatalf("seed records: %v, %d", err, len(records))
	}
	id := records[0].ID

	newCategory := "Entertainment"
	rec, _ := doJSON(t, srv, http.MethodPatch, "/api/transactions/"+id, updateRequest{Category: &newCategory})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	records, _ = store.List(context.Background(), core.ListFilter{})
	if records[0].Category != core.CategoryEntertainment {
		t.Errorf("category after update = %q", records[0].Category)
	}

	bogus := "bogus"
	rec, _ = doJSON(t, srv, http.MethodPatch, "/api/transactions/"+id, updateRequest{Category: &bogus})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bogus category status = %d, want 422", rec.Code)
	}

	rec, _ = doJSON(t, srv, http.MethodPatch, "/api/transactions/"+id, updateRequest{})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty update status = %d, want 422", rec.Code)
	}

	rec, _ = doJSON(t, srv, http.MethodPatch, "/api/transactions/missing", updateRequest{Category: &newCategory})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", rec.Code)
	}

	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d records after delete, want 0", store.Len())
	}
}

func TestMonthlyAndTrendsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	now := time.Now().UTC()

	doJSON(t, srv, http.MethodPost, "/api/messages", ingestRequest{
		Messages: []core.RawMessage{
			{ID: "sms-1", Body: "Rs 500.00 debited via UPI to Zomato", ReceivedAt: now},
		},
	})

	rec, parsed := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/monthly?year=%d", now.Year()), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("monthly status = %d", rec.Code)
	}
	var report aggregate.MonthlyReport
	if err := json.Unmarshal(parsed["report"], &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Months) != 12 || report.TotalYearExpenses.Paise != 50000 {
		t.Errorf("report = year %d total %d paise over %d months",
			report.Year, report.TotalYearExpenses.Paise, len(report.Months))
	}

	rec, parsed = doJSON(t, srv, http.MethodGet, "/api/trends?months=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trends status = %d", rec.Code)
	}
	var trends []aggregate.TrendPoint
	if err := json.Unmarshal(parsed["trends"], &trends); err != nil {
		t.Fatalf("decode trends: %v", err)
	}
	if len(trends) != 3 {
		t.Errorf("len(trends) = %d, want 3", len(trends))
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
