package worker

import (
	"context"
	"time"

	"moneybook/internal/amqp"
)

// InlinePublisher hands change messages straight to an ExportWorker. It
// stands in for the broker when no AMQP URL is configured, so exports
// still happen within the API process.
type InlinePublisher struct {
	Worker  *ExportWorker
	Timeout time.Duration
}

func (p InlinePublisher) PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), p.Timeout)
		defer cancel()
	}
	return p.Worker.HandleChange(ctx, msg)
}
