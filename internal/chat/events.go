package chat

import "github.com/nfrund/roomchat/internal/realtime"

// event is one unit of work for the session actor. Every state change of a
// session is the handling of exactly one event.
type event interface {
	isSessionEvent()
}

// joined reports that the channel connected and join_room was emitted.
type joined struct {
	channel Channel
}

// connectFailed reports that the channel could not be opened.
type connectFailed struct {
	err error
}

// inbound wraps an event that arrived on the channel.
type inbound struct {
	ev realtime.Event
}

// sendRequested asks the actor to send text and report the outcome.
type sendRequested struct {
	text  string
	reply chan error
}

// typingNotified reports a keystroke in a non-empty input.
type typingNotified struct{}

// timerFired is the debounce timer expiring. gen identifies the arming that
// scheduled it; stale generations are ignored.
type timerFired struct {
	gen uint64
}

// leaveRequested ends the session.
type leaveRequested struct{}

func (joined) isSessionEvent()         {}
func (connectFailed) isSessionEvent()  {}
func (inbound) isSessionEvent()        {}
func (sendRequested) isSessionEvent()  {}
func (typingNotified) isSessionEvent() {}
func (timerFired) isSessionEvent()     {}
func (leaveRequested) isSessionEvent() {}
