// Package conversation holds the send/receive state machine of the chat
// client: input gating, the transcript and the rate-limit cooldown.
//
// The controller runs on a single event loop. Submit, Complete and Expire
// must be called from that loop; Perform is the only blocking step and may
// run anywhere.
package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Zacy-Sokach/PolyChat/internal/api"
	"github.com/google/uuid"
)

var (
	ErrEmptyMessage  = errors.New("conversation: empty message")
	ErrInputDisabled = errors.New("conversation: input disabled")
)

// DefaultCooldown is how long input stays locked after a hard rate limit.
const DefaultCooldown = time.Hour

// Sender delivers one message to the chat endpoint.
type Sender interface {
	Send(ctx context.Context, requestID, message string) (*api.Reply, error)
}

// Surface is the UI the controller drives. Append is the only way entries
// reach the screen; the controller never reads them back.
type Surface interface {
	SetInputEnabled(enabled bool)
	ClearInput()
	FocusInput()
	Append(Entry)
}

// Exchange is one submitted message awaiting its outcome.
type Exchange struct {
	ID   string
	Text string
}

type Option func(*Controller)

func WithCooldown(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.cooldown = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithIDGenerator(next func() string) Option {
	return func(c *Controller) {
		c.newID = next
	}
}

type Controller struct {
	sender   Sender
	surface  Surface
	cooldown time.Duration
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	entries   []Entry
	inFlight  *Exchange
	pending   *Cooldown
	lastToken uint64
}

func New(sender Sender, surface Surface, opts ...Option) *Controller {
	c := &Controller{
		sender:   sender,
		surface:  surface,
		cooldown: DefaultCooldown,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InputEnabled reports whether a new message may be submitted: nothing is
// in flight and no cooldown is pending.
func (c *Controller) InputEnabled() bool {
	return c.inFlight == nil && c.pending == nil
}

// InFlight reports whether a request is outstanding.
func (c *Controller) InFlight() bool {
	return c.inFlight != nil
}

// Cooldown returns the pending cooldown, if any.
func (c *Controller) Cooldown() (Cooldown, bool) {
	if c.pending == nil {
		return Cooldown{}, false
	}
	return *c.pending, true
}

// Entries returns a copy of the transcript in display order.
func (c *Controller) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Submit starts an exchange for text. Blank text and submissions while
// input is disabled change nothing. On success input is disabled, the user
// entry is appended and the input field cleared; the caller must then run
// Perform and hand its result to Complete.
func (c *Controller) Submit(text string) (Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return Exchange{}, ErrEmptyMessage
	}
	if !c.InputEnabled() {
		return Exchange{}, ErrInputDisabled
	}

	ex := Exchange{ID: c.newID(), Text: strings.TrimSpace(text)}
	c.inFlight = &ex

	c.surface.SetInputEnabled(false)
	c.append(ex.ID, RoleUser, ex.Text, false)
	c.surface.ClearInput()

	c.logger.Debug("message submitted", "exchange_id", ex.ID, "length", len(ex.Text))
	return ex, nil
}

// Perform issues the request for ex and classifies the result. It blocks
// until the sender returns and touches no controller state.
func (c *Controller) Perform(ctx context.Context, ex Exchange) Outcome {
	reply, err := c.sender.Send(ctx, ex.ID, ex.Text)
	o := Classify(ex.ID, reply, err)

	switch o.Kind {
	case KindTransportError:
		c.logger.Warn("chat request failed", "exchange_id", ex.ID, "error", err)
	case KindServerError:
		c.logger.Warn("chat endpoint error", "exchange_id", ex.ID, "status", o.StatusCode, "error", o.Text)
	default:
		c.logger.Debug("chat reply received", "exchange_id", ex.ID, "status", o.StatusCode, "kind", o.Kind.String())
	}
	return o
}

// Complete appends the entry for o and finalizes the exchange. It returns
// the armed cooldown when the endpoint asked for one; the caller schedules
// Expire(cd.Token) after cd.Duration. Outcomes for anything but the
// in-flight exchange are ignored.
func (c *Controller) Complete(o Outcome) *Cooldown {
	if c.inFlight == nil || c.inFlight.ID != o.ExchangeID {
		c.logger.Warn("outcome for unknown exchange ignored", "exchange_id", o.ExchangeID)
		return nil
	}
	c.inFlight = nil

	role, text, formatted := o.entry()
	c.append(c.newID(), role, text, formatted)

	var armed *Cooldown
	if o.Kind == KindRateLimited {
		cd := c.arm()
		armed = &cd
		c.logger.Info("rate limited, input locked", "exchange_id", o.ExchangeID, "until", cd.Deadline)
	}

	c.finalize(armed == nil)
	return armed
}

// Expire ends the cooldown identified by token. Tokens from replaced
// cooldowns are ignored. Focus is not restored.
func (c *Controller) Expire(token uint64) bool {
	if c.pending == nil || c.pending.Token != token {
		return false
	}
	c.pending = nil

	c.append(c.newID(), RoleSystem, CooldownOverText, false)
	c.surface.SetInputEnabled(c.InputEnabled())
	c.logger.Info("cooldown expired, input unlocked")
	return true
}

// arm starts a cooldown, replacing any that is pending.
func (c *Controller) arm() Cooldown {
	c.lastToken++
	cd := Cooldown{
		Token:    c.lastToken,
		Duration: c.cooldown,
		Deadline: c.now().Add(c.cooldown),
	}
	c.pending = &cd
	return cd
}

func (c *Controller) finalize(refocus bool) {
	enabled := c.InputEnabled()
	c.surface.SetInputEnabled(enabled)
	if enabled && refocus {
		c.surface.FocusInput()
	}
}

func (c *Controller) append(id string, role Role, text string, formatted bool) {
	e := Entry{
		ID:        id,
		Text:      text,
		Role:      role,
		Formatted: formatted,
		At:        c.now(),
	}
	c.entries = append(c.entries, e)
	c.surface.Append(e)
}
