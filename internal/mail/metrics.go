package mail

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Instrument registers otel counters on the worker's hook points:
// email_queued_total on enqueue, email_sent_total / email_failed_total on
// delivery outcome.
func Instrument(w *Worker) error {
	meter := otel.Meter("aria/mail")

	queued, err := meter.Int64Counter("email_queued_total",
		metric.WithDescription("Total emails queued for sending"))
	if err != nil {
		return err
	}
	sent, err := meter.Int64Counter("email_sent_total",
		metric.WithDescription("Total emails successfully sent"))
	if err != nil {
		return err
	}
	failed, err := meter.Int64Counter("email_failed_total",
		metric.WithDescription("Total emails failed after retries"))
	if err != nil {
		return err
	}

	w.RegisterEnqueueHook(func(*Message) {
		queued.Add(context.Background(), 1)
	})
	w.RegisterPostSendHook(func(_ *Message, ok bool) {
		if ok {
			sent.Add(context.Background(), 1)
		} else {
			failed.Add(context.Background(), 1)
		}
	})

	return nil
}
