package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CompletionClient turns a caller's message into a provider reply.
type CompletionClient interface {
	Complete(ctx context.Context, ownerID, message string) (string, error)
}

// LimitedClient bounds every completion call by a timeout and caps the number
// of calls in flight. Waiting for a free slot counts against the timeout.
type LimitedClient struct {
	next     CompletionClient
	provider string
	timeout  time.Duration
	slots    chan struct{}
}

func NewLimitedClient(next CompletionClient, provider string, concurrentReqs int, timeout time.Duration) *LimitedClient {
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}

	slots := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		slots <- struct{}{}
	}

	return &LimitedClient{
		next:     next,
		provider: provider,
		timeout:  timeout,
		slots:    slots,
	}
}

func (c *LimitedClient) Complete(ctx context.Context, ownerID, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.acquire(ctx); err != nil {
		return "", &UpstreamError{Provider: c.provider, Err: fmt.Errorf("waiting for completion slot: %w", err)}
	}
	defer c.release()

	reply, err := c.next.Complete(ctx, ownerID, message)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			return "", err
		}
		return "", &UpstreamError{Provider: c.provider, Err: err}
	}
	return reply, nil
}

// acquire blocks until a slot is available
func (c *LimitedClient) acquire(ctx context.Context) error {
	select {
	case <-c.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *LimitedClient) release() {
	c.slots <- struct{}{}
}
