// Package ingest turns raw notification messages into stored transaction
// records. It sits between the message transport (AMQP or HTTP) and the
// classification and storage layers.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"khata/internal/classify"
	"khata/internal/core"
)

// MessageSource delivers raw messages in batches. The AMQP consumer and the
// HTTP batch endpoint both satisfy it.
type MessageSource interface {
	Next(ctx context.Context) ([]core.RawMessage, error)
}

// Result summarizes one batch run.
type Result struct {
	Received  int `json:"received"`
	Expenses  int `json:"expenses"`
	Discarded int `json:"discarded"`
	Failed    int `json:"failed"`
}

// Service classifies incoming messages and persists the expenses.
type Service struct {
	classifier *classify.Classifier
	writer     core.TransactionWriter
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNow replaces the wall clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(classifier *classify.Classifier, writer core.TransactionWriter, opts ...Option) *Service {
	s := &Service{
		classifier: classifier,
		writer:     writer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestOne classifies a single message and persists it when it is an
// expense. Non-expense messages are discarded without touching storage.
func (s *Service) IngestOne(ctx context.Context, msg core.RawMessage) (classify.ClassifiedMessage, error) {
	if msg.ID == "" {
		return classify.ClassifiedMessage{}, core.ErrEmptyMessageID
	}
	if msg.Body == "" {
		return classify.ClassifiedMessage{}, core.ErrEmptyMessageBody
	}

	result, source := s.classifier.Classify(ctx, msg.Body)
	classified := classify.ClassifiedMessage{
		MessageID:      msg.ID,
		SMSText:        msg.Body,
		Date:           msg.ReceivedAt,
		Sender:         msg.Sender,
		Classification: result,
		Source:         source,
	}

	if !result.IsExpense {
		slog.DebugContext(ctx, "Message discarded as non-expense", "message_id", msg.ID)
		return classified, nil
	}

	record := core.NewTransactionRecord(msg, result, s.now().UTC())
	if _, err := s.writer.Save(ctx, record); err != nil {
		return classified, fmt.Errorf("save transaction %s: %w", msg.ID, err)
	}

	slog.InfoContext(ctx, "Expense ingested",
		"message_id", msg.ID,
		"amount_paise", result.Amount.Paise,
		"category", result.Category,
		"source", source)
	return classified, nil
}

// IngestBatch runs every message through IngestOne, collecting counts. A
// failing save is logged and counted, never fatal: the rest of the batch
// still lands.
func (s *Service) IngestBatch(ctx context.Context, msgs []core.RawMessage) (Result, []classify.ClassifiedMessage) {
	var res Result
	out := make([]classify.ClassifiedMessage, 0, len(msgs))

	for _, msg := range msgs {
		res.Received++
		classified, err := s.IngestOne(ctx, msg)
		if err != nil {
			res.Failed++
			slog.ErrorContext(ctx, "Failed to ingest message",
				"message_id", msg.ID, "error", err)
			continue
		}
		if classified.Classification.IsExpense {
			res.Expenses++
		} else {
			res.Discarded++
		}
		out = append(out, classified)
	}
	return res, out
}

// HandleBatch adapts IngestBatch for queue consumers: any failed save turns
// into an error so the transport requeues the batch. Storage upserts on
// message_id, so the records that already landed are unaffected by the
// redelivery.
func (s *Service) HandleBatch(ctx context.Context, msgs []core.RawMessage) error {
	res, _ := s.IngestBatch(ctx, msgs)
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d messages failed to persist", res.Failed, res.Received)
	}
	return nil
}

// Run drains a message source until it reports an error or the context ends.
// An empty batch means the source is exhausted.
func (s *Service) Run(ctx context.Context, src MessageSource) (Result, error) {
	var total Result
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		msgs, err := src.Next(ctx)
		if err != nil {
			return total, fmt.Errorf("next batch: %w", err)
		}
		if len(msgs) == 0 {
			return total, nil
		}

		res, _ := s.IngestBatch(ctx, msgs)
		total.Received += res.Received
		total.Expenses += res.Expenses
		total.Discarded += res.Discarded
		total.Failed += res.Failed
	}
}
