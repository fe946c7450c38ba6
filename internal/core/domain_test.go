package core

import (
	"testing"
	"time"
)

func TestClassificationResultValidate(t *testing.T) {
	tests := []struct {
		name    string
		result  ClassificationResult
		wantErr error
	}{
		{
			name:   "empty non-expense is valid",
			result: ClassificationResult{},
		},
		{
			name: "non-expense with fields is partial",
			result: ClassificationResult{
				Bank: "HDFC",
			},
			wantErr: ErrPartialClassification,
		},
		{
			name: "well-formed expense",
			result: ClassificationResult{
				IsExpense: true,
				Amount:    Money{Paise: 245000},
				Mode:      ModeOnline,
				Bank:      "HDFC",
				Account:   "XX8901",
				Category:  CategoryFood,
				Receiver:  "Swiggy",
			},
		},
		{
			name: "expense with empty mode",
			result: ClassificationResult{
				IsExpense: true,
				Category:  CategoryOthers,
			},
			wantErr: ErrInvalidMode,
		},
		{
			name: "expense with unset category",
			result: ClassificationResult{
				IsExpense: true,
				Mode:      ModeUnknown,
			},
			wantErr: ErrInvalidCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]PaymentMode{
		"Credit Card": ModeCreditCard,
		"debit card":  ModeDebitCard,
		"UPI":         ModeOnline,
		"Online":      ModeOnline,
		"cash":        ModeCash,
		"Unknown":     ModeUnknown,
	}
	for in, want := range cases {
		got, ok := ParseMode(in)
		if !ok || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q, true", in, got, ok, want)
		}
	}
	if _, ok := ParseMode("wire transfer"); ok {
		t.Error("ParseMode should reject unrecognized modes")
	}
}

func TestNewTransactionRecord(t *testing.T) {
	now := time.Date(2025, 9, 18, 10, 0, 0, 0, time.UTC)
	msg := RawMessage{
		ID:         "msg-1",
		Body:       "Rs 100 debited",
		Sender:     "HDFCBK",
		ReceivedAt: now.Add(-time.Hour),
	}
	c := ClassificationResult{
		IsExpense: true,
		Amount:    Money{Paise: 10000},
		Mode:      ModeUnknown,
		Category:  CategoryOthers,
	}

	rec := NewTransactionRecord(msg, c, now)

	if rec.MessageID != msg.ID || rec.SMSText != msg.Body || rec.Sender != msg.Sender {
		t.Errorf("record does not carry message fields: %+v", rec)
	}
	if !rec.OccurredAt.Equal(msg.ReceivedAt) {
		t.Errorf("OccurredAt = %v, want %v", rec.OccurredAt, msg.ReceivedAt)
	}
	if rec.Amount != c.Amount || rec.Mode != c.Mode || rec.Category != c.Category {
		t.Errorf("record does not carry classification fields: %+v", rec)
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
