package engine

import (
	"context"
)

// Executor runs a single stage call against the model client. It adds no
// retries and no caching; errors come back exactly as the client returned them.
type Executor struct {
	client ModelClient
}

// NewExecutor wraps client.
func NewExecutor(client ModelClient) *Executor {
	return &Executor{client: client}
}

// Run forwards one request and returns the raw text, which may be empty.
func (e *Executor) Run(ctx context.Context, system, user string, temperature float64) (string, error) {
	return e.client.Complete(ctx, Prompt{System: system, User: user, Temperature: temperature})
}
