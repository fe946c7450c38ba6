package classify

import (
	"context"
	"log/slog"
	"time"

	"khata/internal/core"
)

// Provider is an external model-based classification backend. Any transport
// works as long as the response can be validated into the seven result
// fields.
type Provider interface {
	Infer(ctx context.Context, prompt string) (string, error)
}

// Source tags which path produced a classification.
type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
)

// ClassifiedMessage pairs a raw message with its classification, preserving
// input order in batch results.
type ClassifiedMessage struct {
	MessageID      string                    `json:"message_id"`
	SMSText        string                    `json:"sms_text"`
	Date           time.Time                 `json:"date"`
	Sender         string                    `json:"sender"`
	Classification core.ClassificationResult `json:"classification"`
	Source         Source                    `json:"source"`
}

// Classifier orchestrates extraction: provider first when configured, rule
// engine otherwise. It is stateless; construct one per dependency set and
// share freely.
type Classifier struct {
	provider Provider
	timeout  time.Duration
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithProvider sets the optional model provider.
func WithProvider(p Provider) Option {
	return func(c *Classifier) { c.provider = p }
}

// WithTimeout bounds each provider call. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.timeout = d }
}

func New(opts ...Option) *Classifier {
	c := &Classifier{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns a well-formed result for any input. Provider absence,
// error, timeout, or a malformed response all route through the rule-based
// fallback; the returned Source says which path won.
func (c *Classifier) Classify(ctx context.Context, text string) (core.ClassificationResult, Source) {
	if c.provider == nil {
		return Extract(text), SourceFallback
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.provider.Infer(callCtx, BuildPrompt(text))
	if err != nil {
		slog.WarnContext(ctx, "Model provider failed, using fallback", "error", err)
		return Extract(text), SourceFallback
	}

	result, err := ParseProviderResponse(raw)
	if err != nil {
		slog.WarnContext(ctx, "Model response rejected, using fallback", "error", err)
		return Extract(text), SourceFallback
	}

	if err := result.Validate(); err != nil {
		slog.WarnContext(ctx, "Model result failed validation, using fallback", "error", err)
		return Extract(text), SourceFallback
	}

	return result, SourceProvider
}

// BatchClassify processes messages independently and in input order. One
// message can never abort the rest: provider trouble degrades that message
// to the fallback path, which always produces a result.
func (c *Classifier) BatchClassify(ctx context.Context, msgs []core.RawMessage) []ClassifiedMessage {
	out := make([]ClassifiedMessage, 0, len(msgs))
	for _, msg := range msgs {
		result, source := c.Classify(ctx, msg.Body)
		out = append(out, ClassifiedMessage{
			MessageID:      msg.ID,
			SMSText:        msg.Body,
			Date:           msg.ReceivedAt,
			Sender:         msg.Sender,
			Classification: result,
			Source:         source,
		})
	}
	return out
}
