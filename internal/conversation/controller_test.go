package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Zacy-Sokach/PolyChat/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	enabled bool
	calls   []string
	entries []Entry
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{enabled: true}
}

func (s *fakeSurface) SetInputEnabled(enabled bool) {
	s.enabled = enabled
	s.calls = append(s.calls, fmt.Sprintf("enabled=%t", enabled))
}

func (s *fakeSurface) ClearInput() { s.calls = append(s.calls, "clear") }

func (s *fakeSurface) FocusInput() { s.calls = append(s.calls, "focus") }

func (s *fakeSurface) Append(e Entry) {
	s.entries = append(s.entries, e)
	s.calls = append(s.calls, "append:"+string(e.Role))
}

type fakeSender struct {
	reply *api.Reply
	err   error
	sent  []string
}

func (f *fakeSender) Send(_ context.Context, requestID, message string) (*api.Reply, error) {
	f.sent = append(f.sent, message)
	return f.reply, f.err
}

func reply(status int, body api.ChatReply) *fakeSender {
	return &fakeSender{reply: &api.Reply{StatusCode: status, ChatReply: body}}
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newController(t *testing.T, sender Sender) (*Controller, *fakeSurface, *fixedClock) {
	t.Helper()
	surface := newFakeSurface()
	clock := &fixedClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	n := 0
	c := New(sender, surface,
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	return c, surface, clock
}

// roundTrip runs one full exchange the way the UI loop does.
func roundTrip(t *testing.T, c *Controller, text string) *Cooldown {
	t.Helper()
	ex, err := c.Submit(text)
	require.NoError(t, err)
	return c.Complete(c.Perform(context.Background(), ex))
}

func TestSubmitOrderOfEffects(t *testing.T) {
	sender := reply(http.StatusOK, api.ChatReply{Response: "hi"})
	c, surface, _ := newController(t, sender)

	ex, err := c.Submit("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", ex.Text)
	assert.Equal(t, []string{"enabled=false", "append:user", "clear"}, surface.calls)
	assert.False(t, c.InputEnabled())
	assert.True(t, c.InFlight())
	assert.Empty(t, sender.sent, "request is issued by Perform, not Submit")

	require.Len(t, surface.entries, 1)
	assert.Equal(t, Entry{ID: "id-1", Text: "hello", Role: RoleUser, At: surface.entries[0].At}, surface.entries[0])

	o := c.Perform(context.Background(), ex)
	assert.Equal(t, []string{"hello"}, sender.sent)

	assert.Nil(t, c.Complete(o))
	assert.Equal(t, []string{
		"enabled=false", "append:user", "clear",
		"append:bot", "enabled=true", "focus",
	}, surface.calls)
	assert.True(t, c.InputEnabled())
}

func TestBlankSubmitIsNoop(t *testing.T) {
	for _, text := range []string{"", " ", "\n\t  \n"} {
		sender := reply(http.StatusOK, api.ChatReply{Response: "x"})
		c, surface, _ := newController(t, sender)

		_, err := c.Submit(text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.Empty(t, surface.calls)
		assert.Empty(t, c.Entries())
		assert.Empty(t, sender.sent)
		assert.True(t, c.InputEnabled())
	}
}

func TestSubmitWhileInFlightIsRejected(t *testing.T) {
	c, surface, _ := newController(t, reply(http.StatusOK, api.ChatReply{Response: "x"}))

	_, err := c.Submit("first")
	require.NoError(t, err)
	calls := len(surface.calls)

	_, err = c.Submit("second")
	assert.ErrorIs(t, err, ErrInputDisabled)
	assert.Len(t, surface.calls, calls)
	assert.Len(t, c.Entries(), 1)
}

func TestOutcomesAppendExactlyOneEntry(t *testing.T) {
	tests := []struct {
		name      string
		sender    *fakeSender
		role      Role
		text      string
		formatted bool
		enabled   bool
	}{
		{
			name:      "ok renders formatted",
			sender:    reply(http.StatusOK, api.ChatReply{Response: "**bold**"}),
			role:      RoleBot,
			text:      "**bold**",
			formatted: true,
			enabled:   true,
		},
		{
			name:    "hard rate limit",
			sender:  reply(http.StatusTooManyRequests, api.ChatReply{Error: "slow down", RateLimited: true}),
			role:    RoleError,
			text:    "⚠️ slow down",
			enabled: false,
		},
		{
			name:    "soft rate limit",
			sender:  reply(http.StatusTooManyRequests, api.ChatReply{Error: "slow down"}),
			role:    RoleError,
			text:    "⚠️ slow down",
			enabled: true,
		},
		{
			name:    "server error hides details",
			sender:  reply(http.StatusInternalServerError, api.ChatReply{Error: "stack trace"}),
			role:    RoleError,
			text:    GenericErrorText,
			enabled: true,
		},
		{
			name:    "bad request",
			sender:  reply(http.StatusBadRequest, api.ChatReply{}),
			role:    RoleError,
			text:    GenericErrorText,
			enabled: true,
		},
		{
			name:    "transport error",
			sender:  &fakeSender{err: errors.New("connection refused")},
			role:    RoleError,
			text:    GenericErrorText,
			enabled: true,
		},
		{
			name:    "undecodable body",
			sender:  &fakeSender{err: &api.APIError{StatusCode: 502, Message: "<html>"}},
			role:    RoleError,
			text:    GenericErrorText,
			enabled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, surface, _ := newController(t, tt.sender)

			roundTrip(t, c, "hello")

			entries := c.Entries()
			require.Len(t, entries, 2)
			assert.Equal(t, RoleUser, entries[0].Role)
			assert.Equal(t, tt.role, entries[1].Role)
			assert.Equal(t, tt.text, entries[1].Text)
			assert.Equal(t, tt.formatted, entries[1].Formatted)
			assert.Equal(t, tt.enabled, c.InputEnabled())
			assert.Equal(t, tt.enabled, surface.enabled)
			assert.Equal(t, entries, surface.entries)
		})
	}
}

func TestRateLimitCooldownLifecycle(t *testing.T) {
	sender := reply(http.StatusTooManyRequests, api.ChatReply{Error: "slow down", RateLimited: true})
	c, surface, clock := newController(t, sender)

	cd := roundTrip(t, c, "hello")
	require.NotNil(t, cd)
	assert.Equal(t, time.Hour, cd.Duration)
	assert.Equal(t, clock.t.Add(time.Hour), cd.Deadline)
	assert.NotContains(t, surface.calls, "focus")
	assert.False(t, surface.enabled)

	pending, ok := c.Cooldown()
	require.True(t, ok)
	assert.Equal(t, *cd, pending)

	_, err := c.Submit("again")
	assert.ErrorIs(t, err, ErrInputDisabled)

	surface.calls = nil
	assert.True(t, c.Expire(cd.Token))
	assert.True(t, c.InputEnabled())
	assert.True(t, surface.enabled)
	assert.Equal(t, []string{"append:system", "enabled=true"}, surface.calls, "focus is not returned on expiry")

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "⚠️ slow down", entries[1].Text)
	assert.Equal(t, Entry{ID: entries[2].ID, Text: CooldownOverText, Role: RoleSystem, At: clock.t}, entries[2])

	assert.False(t, c.Expire(cd.Token), "expiring twice is a no-op")
	assert.Len(t, c.Entries(), 3)
}

func TestRearmReplacesPendingCooldown(t *testing.T) {
	c, _, _ := newController(t, reply(http.StatusTooManyRequests, api.ChatReply{Error: "x", RateLimited: true}))

	first := c.arm()
	second := c.arm()
	assert.NotEqual(t, first.Token, second.Token)

	assert.False(t, c.Expire(first.Token), "stale timer must not unlock input")
	_, ok := c.Cooldown()
	assert.True(t, ok)

	assert.True(t, c.Expire(second.Token))
	assert.True(t, c.InputEnabled())
}

func TestCompleteIgnoresUnknownExchange(t *testing.T) {
	c, surface, _ := newController(t, reply(http.StatusOK, api.ChatReply{Response: "x"}))

	assert.Nil(t, c.Complete(Outcome{ExchangeID: "nope", Kind: KindReply, Text: "x"}))
	assert.Empty(t, surface.calls)

	ex, err := c.Submit("hi")
	require.NoError(t, err)
	assert.Nil(t, c.Complete(Outcome{ExchangeID: "other", Kind: KindReply}))
	assert.True(t, c.InFlight())

	c.Complete(c.Perform(context.Background(), ex))
	assert.False(t, c.InFlight())
}

func TestFinalizationRestoresPreSubmitState(t *testing.T) {
	senders := []*fakeSender{
		reply(http.StatusOK, api.ChatReply{Response: "a"}),
		reply(http.StatusTooManyRequests, api.ChatReply{Error: "b"}),
		reply(http.StatusServiceUnavailable, api.ChatReply{}),
		{err: context.DeadlineExceeded},
	}
	for _, s := range senders {
		c, _, _ := newController(t, s)
		before := c.InputEnabled()
		assert.Nil(t, roundTrip(t, c, "msg"))
		assert.Equal(t, before, c.InputEnabled())
	}
}

func TestCooldownOptionAndRemaining(t *testing.T) {
	sender := reply(http.StatusTooManyRequests, api.ChatReply{Error: "x", RateLimited: true})
	surface := newFakeSurface()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(sender, surface, WithCooldown(90*time.Second), WithClock(func() time.Time { return start }))

	cd := roundTrip(t, c, "hello")
	require.NotNil(t, cd)
	assert.Equal(t, 90*time.Second, cd.Duration)
	assert.Equal(t, 30*time.Second, cd.Remaining(start.Add(time.Minute)))
	assert.Equal(t, time.Duration(0), cd.Remaining(start.Add(time.Hour)))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindTransportError, Classify("x", nil, nil).Kind)
	assert.Equal(t, KindTransportError, Classify("x", nil, errors.New("boom")).Kind)

	o := Classify("x", &api.Reply{StatusCode: 429, ChatReply: api.ChatReply{Error: "e", RateLimited: true}}, nil)
	assert.Equal(t, KindRateLimited, o.Kind)
	assert.Equal(t, "rate_limited", o.Kind.String())

	o = Classify("x", &api.Reply{StatusCode: 503}, nil)
	assert.Equal(t, KindServerError, o.Kind)
	assert.Equal(t, 503, o.StatusCode)
}
