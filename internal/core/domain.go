package core

import (
	"errors"
	"strings"
	"time"
)

// PaymentMode is how a transaction was paid. The zero value means the field
// was never determined (non-expense results keep it empty).
type PaymentMode string

const (
	ModeCreditCard PaymentMode = "Credit Card"
	ModeDebitCard  PaymentMode = "Debit Card"
	ModeOnline     PaymentMode = "Online"
	ModeCash       PaymentMode = "Cash"
	ModeUnknown    PaymentMode = "Unknown"
)

// Category is the spending category assigned to an expense. The zero value
// means unset; classified expenses always carry a concrete category
// (CategoryOthers when nothing matched).
type Category string

const (
	CategoryShopping      Category = "Shopping"
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealthcare    Category = "Healthcare"
	CategoryUtilities     Category = "Utilities"
	CategoryCash          Category = "Cash"
	CategoryOthers        Category = "Others"
)

// Categories lists every category in its canonical scan order.
func Categories() []Category {
	return []Category{
		CategoryShopping,
		CategoryFood,
		CategoryTransport,
		CategoryEntertainment,
		CategoryHealthcare,
		CategoryUtilities,
		CategoryCash,
		CategoryOthers,
	}
}

// ParseMode maps a free-form mode string (e.g. from a model response) to a
// PaymentMode constant. The match is case-insensitive.
func ParseMode(s string) (PaymentMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit card", "creditcard", "credit":
		return ModeCreditCard, true
	case "debit card", "debitcard", "debit":
		return ModeDebitCard, true
	case "online", "upi", "net banking", "netbanking":
		return ModeOnline, true
	case "cash", "atm":
		return ModeCash, true
	case "unknown":
		return ModeUnknown, true
	}
	return "", false
}

// ParseCategory maps a free-form category string to a Category constant.
func ParseCategory(s string) (Category, bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories() {
		if t == strings.ToLower(string(c)) {
			return c, true
		}
	}
	return "", false
}

// RawMessage is one notification message as delivered by the message source.
// The core never mutates it.
type RawMessage struct {
	ID         string    `json:"id"`
	Body       string    `json:"body"`
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `json:"received_at"`
}

// ClassificationResult is the always-well-formed output of classification.
//
// Invariant: when IsExpense is false every other field holds its zero value.
// The extractor and the provider parser only populate fields on the expense
// path, so the invariant holds by construction; Validate guards it at the
// boundary anyway.
type ClassificationResult struct {
	IsExpense bool        `json:"is_expense"`
	Amount    Money       `json:"amount"`
	Mode      PaymentMode `json:"mode"`
	Bank      string      `json:"bank"`
	Account   string      `json:"account"`
	Category  Category    `json:"category"`
	Receiver  string      `json:"receiver"`
}

var (
	ErrPartialClassification = errors.New("non-expense result carries classification fields")
	ErrInvalidMode           = errors.New("invalid payment mode")
	ErrInvalidCategory       = errors.New("invalid category")
	ErrNegativeAmount        = errors.New("negative amount")
	ErrEmptyMessageID        = errors.New("empty message id")
	ErrEmptyMessageBody      = errors.New("empty message body")
)

func (r ClassificationResult) Validate() error {
	if !r.IsExpense {
		if r != (ClassificationResult{}) {
			return ErrPartialClassification
		}
		return nil
	}
	if r.Amount.Paise < 0 {
		return ErrNegativeAmount
	}
	switch r.Mode {
	case ModeCreditCard, ModeDebitCard, ModeOnline, ModeCash, ModeUnknown:
	default:
		return ErrInvalidMode
	}
	if _, ok := ParseCategory(string(r.Category)); !ok {
		return ErrInvalidCategory
	}
	return nil
}

// TransactionRecord is the durable row produced by merging a RawMessage with
// its ClassificationResult. MessageID is the natural key: re-classifying the
// same message replaces the stored record.
type TransactionRecord struct {
	ID         string      `json:"id"`
	MessageID  string      `json:"message_id"`
	SMSText    string      `json:"sms_text"`
	OccurredAt time.Time   `json:"occurred_at"`
	Sender     string      `json:"sender"`
	IsExpense  bool        `json:"is_expense"`
	Amount     Money       `json:"amount"`
	Mode       PaymentMode `json:"mode"`
	Bank       string      `json:"bank"`
	Account    string      `json:"account"`
	Category   Category    `json:"category"`
	Receiver   string      `json:"receiver"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (t TransactionRecord) Validate() error {
	if strings.TrimSpace(t.MessageID) == "" {
		return ErrEmptyMessageID
	}
	if strings.TrimSpace(t.SMSText) == "" {
		return ErrEmptyMessageBody
	}
	if t.Amount.Paise < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// NewTransactionRecord merges a raw message with its classification.
// The caller assigns the record ID.
func NewTransactionRecord(msg RawMessage, c ClassificationResult, now time.Time) TransactionRecord {
	return TransactionRecord{
		MessageID:  msg.ID,
		SMSText:    msg.Body,
		OccurredAt: msg.ReceivedAt,
		Sender:     msg.Sender,
		IsExpense:  c.IsExpense,
		Amount:     c.Amount,
		Mode:       c.Mode,
		Bank:       c.Bank,
		Account:    c.Account,
		Category:   c.Category,
		Receiver:   c.Receiver,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
