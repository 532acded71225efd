package conversation

import (
	"fmt"

	"github.com/Zacy-Sokach/PolyChat/internal/api"
)

// Kind classifies how an exchange ended.
type Kind int

const (
	KindReply Kind = iota
	KindRateLimited
	KindRateLimitedSoft
	KindServerError
	KindTransportError
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindRateLimited:
		return "rate_limited"
	case KindRateLimitedSoft:
		return "rate_limited_soft"
	case KindServerError:
		return "server_error"
	case KindTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the classified result of one exchange.
type Outcome struct {
	ExchangeID string
	Kind       Kind
	StatusCode int
	Text       string
	Err        error
}

// Classify maps a reply or transport error onto an Outcome.
func Classify(exchangeID string, reply *api.Reply, err error) Outcome {
	o := Outcome{ExchangeID: exchangeID}

	switch {
	case err != nil || reply == nil:
		o.Kind = KindTransportError
		o.Err = err
	case reply.OK():
		o.Kind = KindReply
		o.StatusCode = reply.StatusCode
		o.Text = reply.Response
	case reply.TooManyRequests():
		o.Kind = KindRateLimitedSoft
		if reply.RateLimited {
			o.Kind = KindRateLimited
		}
		o.StatusCode = reply.StatusCode
		o.Text = reply.Error
	default:
		o.Kind = KindServerError
		o.StatusCode = reply.StatusCode
		o.Text = reply.Error
	}
	return o
}

// entry builds the transcript entry for the outcome. Server error details
// never reach the transcript.
func (o Outcome) entry() (Role, string, bool) {
	switch o.Kind {
	case KindReply:
		return RoleBot, o.Text, true
	case KindRateLimited, KindRateLimitedSoft:
		return RoleError, rateLimitedPrefix + o.Text, false
	default:
		return RoleError, GenericErrorText, false
	}
}
