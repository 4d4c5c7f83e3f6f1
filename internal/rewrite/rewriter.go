package rewrite

import (
	"context"
	"log"
	"strings"
	"time"

	"kindred/backend/internal/config"
)

const (
	// DefaultAcknowledgment is used whenever generation is unavailable.
	DefaultAcknowledgment = "Thank you for sharing this. Someone who wants to listen will be with you soon."

	acknowledgePrompt = "You help people who are going through a hard time find a peer listener. " +
		"Reply with one or two warm sentences that acknowledge what the person shared, in the same language they used. " +
		"The reply is shown to prospective listeners, so never repeat names, places or contact details, and never give advice."
)

// Rewriter bounds a Client call by Timeout and never fails: on timeout,
// error or empty output it returns Fallback.
type Rewriter struct {
	Client   Client
	Timeout  time.Duration
	Fallback string
}

func NewRewriter(c Client, timeout time.Duration) *Rewriter {
	if timeout <= 0 {
		timeout = config.DefaultRewriteTimeout
	}
	return &Rewriter{Client: c, Timeout: timeout, Fallback: DefaultAcknowledgment}
}

type result struct {
	text string
	err  error
}

// Acknowledge returns the generated acknowledgment and true, or the fallback
// and false. A completion arriving after the deadline is discarded.
func (r *Rewriter) Acknowledge(ctx context.Context, text string) (string, bool) {
	if r.Client == nil {
		return r.Fallback, false
	}

	callCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		out, err := r.Client.Complete(callCtx, acknowledgePrompt, text)
		done <- result{text: out, err: err}
	}()

	timer := time.NewTimer(r.Timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			log.Printf("WARNING: Rewrite failed, using fallback: %v", res.err)
			return r.Fallback, false
		}
		out := strings.TrimSpace(res.text)
		if out == "" {
			return r.Fallback, false
		}
		return out, true
	case <-timer.C:
		log.Printf("WARNING: Rewrite timed out after %s, using fallback", r.Timeout)
		return r.Fallback, false
	case <-ctx.Done():
		return r.Fallback, false
	}
}
