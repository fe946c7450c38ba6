package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/period"
)

// classifyRequest carries one message body for ad-hoc classification.
type classifyRequest struct {
	SMSText string `json:"sms_text"`
}

// handleClassify classifies a single message without persisting anything.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := sanitizeInput(req.SMSText)
	if text == "" {
		writeError(w, http.StatusUnprocessableEntity, "sms_text is required")
		return
	}

	result, source := s.classifier.Classify(r.Context(), text)
	writeJSON(w, http.StatusOK, envelope{
		"classification": result,
		"source":         source,
	})
}

// ingestRequest carries a batch of raw messages.
type ingestRequest struct {
	Messages []core.RawMessage `json:"messages"`
}

// handleIngestMessages classifies a batch and persists the expenses.
func (s *Server) handleIngestMessages(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "messages is required")
		return
	}

	for i := range req.Messages {
		req.Messages[i].Body = sanitizeInput(req.Messages[i].Body)
		if req.Messages[i].ReceivedAt.IsZero() {
			req.Messages[i].ReceivedAt = time.Now().UTC()
		}
	}

	result, classified := s.ingester.IngestBatch(r.Context(), req.Messages)
	if result.Expenses > 0 {
		s.invalidateViews()
	}
	for _, m := range classified {
		if m.Classification.IsExpense {
			s.structured.LogTransactionIngested(r.Context(), m.MessageID,
				m.Classification.Amount.Paise, string(m.Classification.Category),
				string(m.Classification.Mode), string(m.Source))
		}
	}

	writeJSON(w, http.StatusOK, envelope{
		"result":   result,
		"messages": classified,
	})
}

// cachedView serves an aggregate view through the LRU cache.
func (s *Server) cachedView(r *http.Request, key string, compute func() (any, error)) (any, error) {
	if data, found := s.viewCache.Get(key); found {
		s.logger.DebugContext(r.Context(), "View cache hit", "key", key)
		return data, nil
	}
	data, err := compute()
	if err != nil {
		return nil, err
	}
	s.viewCache.Set(key, data)
	return data, nil
}

func windowKey(view string, w period.Window) string {
	return fmt.Sprintf("%s:%s:%s", view, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	win := parseWindow(r, time.Now().UTC())
	data, err := s.cachedView(r, windowKey("summary", win), func() (any, error) {
		return s.aggregator.ExpenseSummary(r.Context(), win)
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summary failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"period": win, "summary": data})
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	s.breakdown(w, r, "breakdown_category", func(win period.Window) (any, error) {
		return s.aggregator.CategoryBreakdown(r.Context(), win)
	})
}

func (s *Server) handleModeBreakdown(w http.ResponseWriter, r *http.Request) {
	s.breakdown(w, r, "breakdown_mode", func(win period.Window) (any, error) {
		return s.aggregator.PaymentModeBreakdown(r.Context(), win)
	})
}

func (s *Server) handleBankBreakdown(w http.ResponseWriter, r *http.Request) {
	s.breakdown(w, r, "breakdown_bank", func(win period.Window) (any, error) {
		return s.aggregator.BankwiseBreakdown(r.Context(), win)
	})
}

func (s *Server) breakdown(w http.ResponseWriter, r *http.Request, view string, compute func(period.Window) (any, error)) {
	win := parseWindow(r, time.Now().UTC())
	data, err := s.cachedView(r, windowKey(view, win), func() (any, error) {
		return compute(win)
	})
	if err != nil {
		s.structured.LogError(r.Context(), "Breakdown failed", err, log.ComponentHTTP, log.OpRead, log.NewFields())
		writeError(w, http.StatusInternalServerError, "failed to compute breakdown")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"period": win, "breakdown": data})
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	year := parseYear(r, time.Now().UTC())
	key := fmt.Sprintf("monthly:%d", year)
	data, err := s.cachedView(r, key, func() (any, error) {
		return s.aggregator.MonthlyExpenses(r.Context(), year)
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Monthly report failed", log.FieldYear, year, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to compute monthly report")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"report": data})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	months := parseMonths(r)
	key := fmt.Sprintf("trends:%d", months)
	data, err := s.cachedView(r, key, func() (any, error) {
		return s.aggregator.SpendingTrends(r.Context(), months)
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Trends failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to compute trends")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"trends": data})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	win := parseWindow(r, time.Now().UTC())
	data, err := s.cachedView(r, windowKey("dashboard", win), func() (any, error) {
		return s.aggregator.DashboardView(r.Context(), win)
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Dashboard failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to compute dashboard")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"period": win, "dashboard": data})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	win := parseWindow(r, time.Now().UTC())
	filter := core.ListFilter{Start: win.Start, End: win.End}

	q := r.URL.Query()
	if v := sanitizeInput(q.Get("category")); v != "" {
		cat, ok := core.ParseCategory(v)
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "unknown category")
			return
		}
		filter.Category = cat
	}
	if v := sanitizeInput(q.Get("mode")); v != "" {
		mode, ok := core.ParseMode(v)
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "unknown payment mode")
			return
		}
		filter.Mode = mode
	}
	filter.Bank = sanitizeInput(q.Get("bank"))
	if v := q.Get("limit"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &filter.Limit); err != nil || filter.Limit < 0 {
			writeError(w, http.StatusUnprocessableEntity, "invalid limit")
			return
		}
	}

	records, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List transactions failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if records == nil {
		records = []core.TransactionRecord{}
	}
	writeJSON(w, http.StatusOK, envelope{"period": win, "transactions": records, "count": len(records)})
}

// updateRequest carries the user-editable transaction fields. Absent fields
// leave the stored value untouched.
type updateRequest struct {
	Amount   *core.Money `json:"amount"`
	Category *string     `json:"category"`
	Mode     *string     `json:"mode"`
	Receiver *string     `json:"receiver"`
	Bank     *string     `json:"bank"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var fields core.UpdateFields
	if req.Amount != nil {
		if req.Amount.Paise < 0 {
			writeError(w, http.StatusUnprocessableEntity, "amount cannot be negative")
			return
		}
		fields.Amount = req.Amount
	}
	if req.Category != nil {
		cat, ok := core.ParseCategory(*req.Category)
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "unknown category")
			return
		}
		fields.Category = &cat
	}
	if req.Mode != nil {
		mode, ok := core.ParseMode(*req.Mode)
		if !ok {
			writeError(w, http.StatusUnprocessableEntity, "unknown payment mode")
			return
		}
		fields.Mode = &mode
	}
	if req.Receiver != nil {
		receiver := sanitizeInput(*req.Receiver)
		fields.Receiver = &receiver
	}
	if req.Bank != nil {
		bank := sanitizeInput(*req.Bank)
		fields.Bank = &bank
	}
	if fields == (core.UpdateFields{}) {
		writeError(w, http.StatusUnprocessableEntity, "no updatable fields provided")
		return
	}

	if err := s.store.UpdateByID(r.Context(), id, fields); err != nil {
		s.logger.WarnContext(r.Context(), "Update transaction failed", "id", id, log.FieldError, err)
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	s.invalidateViews()
	writeJSON(w, http.StatusOK, envelope{"id": id})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	if err := s.store.DeleteByID(r.Context(), id); err != nil {
		s.logger.WarnContext(r.Context(), "Delete transaction failed", "id", id, log.FieldError, err)
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	s.invalidateViews()
	writeJSON(w, http.StatusOK, envelope{"id": id})
}
