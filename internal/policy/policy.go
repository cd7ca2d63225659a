// Package policy decides what the scheduler should do with a notification
// after each delivery attempt: retry the same channel, escalate to the next
// usable one, or give up.
package policy

import (
	"time"

	"github.com/wb-go/wbf/retry"

	"github.com/notifyhub/dispatcher/internal/model"
	"github.com/notifyhub/dispatcher/internal/settings"
)

// Action is the kind of decision produced for a notification.
type Action string

const (
	// ActionRetry schedules another attempt on Decision.Channel after
	// Decision.Delay. It also covers the very first attempt.
	ActionRetry Action = "retry"
	// ActionEscalate moves on to the next usable channel after the current
	// one exhausted its attempts.
	ActionEscalate Action = "escalate"
	// ActionGiveUp means all usable channels are exhausted (or none exist);
	// the notification stays unsent and gets no further automatic action.
	ActionGiveUp Action = "give_up"
	// ActionNone means the last attempt succeeded; nothing left to decide.
	ActionNone Action = "none"
)

// Reasons attached to give-up decisions.
const (
	ReasonNoUsableChannel   = "no usable channel"
	ReasonChannelsExhausted = "all channels exhausted"
)

// Decision tells the scheduler which channel to try next and when.
type Decision struct {
	Action  Action
	Channel settings.Channel
	Delay   time.Duration
	Reason  string
}

// Policy computes decisions from attempt history. Strategy.Attempts is the
// per-channel attempt budget, Strategy.Delay the base backoff, and
// Strategy.Backoff the multiplier between consecutive retries on the same
// channel. MaxDelay caps the computed backoff.
//
// Decide is pure: identical history and channel lists always produce the
// identical decision.
type Policy struct {
	Strategy retry.Strategy
	MaxDelay time.Duration
}

func New(strategy retry.Strategy, maxDelay time.Duration) Policy {
	return Policy{Strategy: strategy, MaxDelay: maxDelay}
}

// Decide inspects the full ordered attempt history together with the user's
// usable channels and returns the next action.
//
// An empty history yields the first attempt on the first usable channel with
// no delay. An empty channel list yields an immediate give-up.
func (p Policy) Decide(history []model.DeliveryAttempt, channels []settings.Channel) Decision {
	if len(channels) == 0 {
		return Decision{Action: ActionGiveUp, Reason: ReasonNoUsableChannel}
	}

	if len(history) == 0 {
		return Decision{Action: ActionRetry, Channel: channels[0]}
	}

	last := history[len(history)-1]
	if last.Status == model.AttemptSent {
		return Decision{Action: ActionNone}
	}

	failures := countFailed(history, last.Method)
	if idx := channelIndex(channels, last.Method); idx >= 0 && failures < p.Strategy.Attempts {
		return Decision{
			Action:  ActionRetry,
			Channel: channels[idx],
			Delay:   p.backoff(failures),
		}
	}

	// The last channel is exhausted (or no longer usable); escalation resets
	// the per-channel counter by moving to a channel with budget left.
	for _, ch := range channels {
		if countFailed(history, ch.Method) < p.Strategy.Attempts {
			return Decision{Action: ActionEscalate, Channel: ch}
		}
	}

	return Decision{Action: ActionGiveUp, Reason: ReasonChannelsExhausted}
}

// backoff returns Delay * Backoff^(failures-1), capped at MaxDelay.
// With Delay=2s and Backoff=2 the progression is 2s, 4s, 8s, ...
func (p Policy) backoff(failures int) time.Duration {
	d := p.Strategy.Delay
	for i := 1; i < failures; i++ {
		d = time.Duration(float64(d) * p.Strategy.Backoff)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}

	return d
}

func countFailed(history []model.DeliveryAttempt, method model.DeliveryMethod) int {
	var n int
	for _, a := range history {
		if a.Method == method && a.Status == model.AttemptFailed {
			n++
		}
	}

	return n
}

func channelIndex(channels []settings.Channel, method model.DeliveryMethod) int {
	for i, ch := range channels {
		if ch.Method == method {
			return i
		}
	}

	return -1
}
