package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

// AllowedUpdates limits long polling to the update kinds the menu runtime handles.
var AllowedUpdates = []string{"message", "callback_query"}

// PollerOptions configures BuildPoller.
type PollerOptions struct {
	LongPollTimeoutSeconds int
}

// BuildPoller returns a long poller; every hosted bot polls on its own.
func BuildPoller(opts PollerOptions) *tele.LongPoller {
	timeoutSec := opts.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &tele.LongPoller{
		Timeout:        time.Duration(timeoutSec) * time.Second,
		AllowedUpdates: AllowedUpdates,
	}
}
