// Package assistant answers chat messages about the app. A remote model is
// asked first under a short timeout; any failure falls back to the built-in
// keyword responder, so the caller always gets an answer and never sees a
// transport error.
package assistant

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumeiq/core/types"
)

// DefaultTimeout bounds one remote call. The local fallback is instant, so
// a slow remote never blocks the chat.
const DefaultTimeout = 8 * time.Second

// Response is one assistant reply with optional follow-up prompts.
type Response struct {
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions,omitempty"`
	Remote      bool     `json:"remote"`
}

// UserContext personalizes replies about the user's own score.
type UserContext struct {
	IQ   float64         `json:"iq"`
	Tier types.TierLevel `json:"tier"`
}

// RemoteResponder is an external language model. Errors and timeouts are
// non-fatal; the client falls back locally.
type RemoteResponder interface {
	Ask(ctx context.Context, message string) (string, error)
}

// Client routes messages to the remote model with a local fallback.
type Client struct {
	remote  RemoteResponder
	timeout time.Duration
	log     *zap.Logger
}

// NewClient creates an assistant client. A nil remote means local-only
// operation; a nil logger silences it.
func NewClient(remote RemoteResponder, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{remote: remote, timeout: DefaultTimeout, log: log}
}

// WithTimeout overrides the remote call deadline.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// Respond answers a message, preferring the remote model. A remote error is
// logged and absorbed into the local fallback.
func (c *Client) Respond(ctx context.Context, message string, user *UserContext) Response {
	if c.remote != nil {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		text, err := c.remote.Ask(callCtx, message)
		if err == nil && text != "" {
			return Response{Text: text, Remote: true}
		}
		c.log.Warn("remote assistant unavailable, answering locally", zap.Error(err))
	}
	return LocalResponse(message, user)
}

// LocalResponse is the deterministic keyword responder. The same message
// always produces the same reply; user context appends a personal line to
// score-related intents.
func LocalResponse(message string, user *UserContext) Response {
	intent := matchIntent(message)
	options := cannedResponses[intent]
	resp := options[variantIndex(message, len(options))]

	if user != nil {
		switch intent {
		case intentPoints:
			resp.Text += fmt.Sprintf(" Your current Impact IQ is %.1f.", user.IQ)
		case intentIQ:
			resp.Text += fmt.Sprintf(" You are at IQ %.1f in the %s tier.", user.IQ, user.Tier)
		}
	}
	return resp
}
