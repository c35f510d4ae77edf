package newsletter

import (
	"context"
	"sync"

	"github.com/crypto-talks/platform/internal/mailer"
)

const defaultConcurrency = 8

// SendResult is the outcome of one recipient's send.
type SendResult struct {
	Email string
	Err   error
}

// Dispatcher fans one message out to many recipients through a bounded
// worker pool. Every send is attempted regardless of earlier failures;
// the per-recipient outcomes are returned in recipient order.
type Dispatcher struct {
	sender      mailer.Sender
	concurrency int
}

// NewDispatcher creates a dispatcher with the given concurrency limit.
// A limit below one falls back to the default.
func NewDispatcher(sender mailer.Sender, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Dispatcher{sender: sender, concurrency: concurrency}
}

// Send dispatches msg to every recipient and waits for all sends to settle.
func (d *Dispatcher) Send(ctx context.Context, msg mailer.Message, recipients []string) []SendResult {
	results := make([]SendResult, len(recipients))
	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	for i, email := range recipients {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			personal := msg
			personal.To = []string{email}
			results[i] = SendResult{Email: email, Err: d.sender.Send(ctx, personal)}
		}(i, email)
	}
	wg.Wait()
	return results
}

// FirstError returns the first failed result, or nil when all sends
// succeeded.
func FirstError(results []SendResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
