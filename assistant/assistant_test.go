package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumeiq/core/types"
)

type stubRemote struct {
	text string
	err  error
	wait time.Duration
}

func (s *stubRemote) Ask(ctx context.Context, message string) (string, error) {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func TestMatchIntent(t *testing.T) {
	tests := []struct {
		message string
		want    intent
	}{
		{"hello there", intentGreeting},
		{"Hey!", intentGreeting},
		{"how do I earn points?", intentPoints},
		{"what is impact iq", intentIQ},
		{"my carbon footprint", intentCarbon},
		{"any tips for me", intentTips},
		{"how do I redeem a coupon", intentRewards},
		{"best metro route", intentTransit},
		{"what's the weather", intentDefault},
		{"", intentDefault},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := matchIntent(tt.message); got != tt.want {
				t.Errorf("matchIntent(%q) = %s, want %s", tt.message, got, tt.want)
			}
		})
	}
}

func TestLocalResponse(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := LocalResponse("any tips for me", nil)
		b := LocalResponse("any tips for me", nil)
		if a.Text != b.Text {
			t.Errorf("same message produced different replies")
		}
	})

	t.Run("never empty", func(t *testing.T) {
		for _, msg := range []string{"", "hello", "zzz", "points please", "route"} {
			if got := LocalResponse(msg, nil); got.Text == "" {
				t.Errorf("LocalResponse(%q) returned empty text", msg)
			}
		}
	})

	t.Run("user context personalizes score intents", func(t *testing.T) {
		got := LocalResponse("what is impact iq", &UserContext{IQ: 62.5, Tier: types.TierAligned})
		if !strings.Contains(got.Text, "62.5") {
			t.Errorf("reply does not mention user IQ: %q", got.Text)
		}
	})

	t.Run("default intent offers suggestions", func(t *testing.T) {
		got := LocalResponse("unrelated question", nil)
		if len(got.Suggestions) == 0 {
			t.Errorf("default reply carries no suggestions")
		}
	})
}

func TestRespond(t *testing.T) {
	t.Run("remote answer preferred", func(t *testing.T) {
		c := NewClient(&stubRemote{text: "remote says hi"}, nil)
		got := c.Respond(context.Background(), "hello", nil)
		if !got.Remote || got.Text != "remote says hi" {
			t.Errorf("Respond() = %+v, want remote reply", got)
		}
	})

	t.Run("remote error falls back locally", func(t *testing.T) {
		c := NewClient(&stubRemote{err: errors.New("upstream down")}, nil)
		got := c.Respond(context.Background(), "any tips for me", nil)
		if got.Remote {
			t.Errorf("Respond() marked remote despite failure")
		}
		if got.Text != LocalResponse("any tips for me", nil).Text {
			t.Errorf("fallback reply differs from local responder")
		}
	})

	t.Run("remote timeout falls back locally", func(t *testing.T) {
		c := NewClient(&stubRemote{text: "too late", wait: 200 * time.Millisecond}, nil).
			WithTimeout(10 * time.Millisecond)
		got := c.Respond(context.Background(), "hello", nil)
		if got.Remote {
			t.Errorf("Respond() used a reply that arrived after the deadline")
		}
	})

	t.Run("empty remote reply treated as failure", func(t *testing.T) {
		c := NewClient(&stubRemote{text: ""}, nil)
		got := c.Respond(context.Background(), "hello", nil)
		if got.Remote || got.Text == "" {
			t.Errorf("Respond() = %+v, want local fallback", got)
		}
	})

	t.Run("nil remote is local only", func(t *testing.T) {
		c := NewClient(nil, nil)
		got := c.Respond(context.Background(), "hello", nil)
		if got.Remote || got.Text == "" {
			t.Errorf("Respond() = %+v, want local reply", got)
		}
	})
}
