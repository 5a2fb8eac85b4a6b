package stream

import (
	"strings"
)

// Phase is the position of a session in its lifecycle.
type Phase int

const (
	LoadingInitial Phase = iota
	Ready
	AwaitingInput
	Paging
	Submitting
	Closing
	Closed
)

func (p Phase) String() string {
	switch p {
	case LoadingInitial:
		return "loading_initial"
	case Ready:
		return "ready"
	case AwaitingInput:
		return "awaiting_input"
	case Paging:
		return "paging"
	case Submitting:
		return "submitting"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// State is everything the transition function needs to know about a
// session.
type State struct {
	Phase Phase
	// PagingEnabled turns on the page command.
	PagingEnabled bool
	Exhausted     bool
	LimitReached  bool
}

// EventKind identifies an event fed into Step.
type EventKind int

const (
	EvLoaded EventKind = iota
	EvSubscribed
	EvLine
	EvInputClosed
	EvCancel
	EvPageDone
	EvSubmitDone
	EvTornDown
)

// Event is an input to the state machine.
type Event struct {
	Kind EventKind

	// Line is the raw input for EvLine.
	Line string

	// Count, Exhausted and LimitReached describe a finished fetch for
	// EvLoaded and EvPageDone.
	Count        int
	Exhausted    bool
	LimitReached bool

	// Err is set when a fetch or write failed.
	Err error
}

// ActionKind identifies the side effect the runtime performs after a
// transition.
type ActionKind int

const (
	ActNone ActionKind = iota
	ActSubscribe
	ActFetchPage
	ActRenderPage
	ActSubmit
	ActEcho
	ActNotice
	ActTeardown
	ActDone
)

// Action is a side effect requested by Step.
type Action struct {
	Kind ActionKind
	// Text is the submission for ActSubmit or the message for ActNotice.
	Text  string
	Level Level
}

const (
	msgNoMore       = "No more messages."
	msgLimitReached = "Message limit reached."
)

// Command classifies a line of user input.
type Command int

const (
	CmdEmpty Command = iota
	CmdQuit
	CmdPage
	CmdSubmit
)

// ParseInput classifies a line. The page command is only recognised when
// pagingEnabled is set; otherwise "p" is submitted as text.
func ParseInput(line string, pagingEnabled bool) (Command, string) {
	text := strings.TrimSpace(line)
	switch {
	case text == "":
		return CmdEmpty, ""
	case strings.EqualFold(text, ":q"):
		return CmdQuit, ""
	case pagingEnabled && strings.EqualFold(text, "p"):
		return CmdPage, ""
	default:
		return CmdSubmit, text
	}
}

// Step is the session transition function. It has no side effects; the
// runtime performs the returned action. Events that do not apply to the
// current phase leave the state unchanged.
func Step(s State, ev Event) (State, Action) {
	if s.Phase == Closed {
		return s, Action{}
	}

	switch ev.Kind {
	case EvCancel, EvInputClosed:
		if s.Phase == Closing {
			return s, Action{}
		}
		s.Phase = Closing
		return s, Action{Kind: ActTeardown}

	case EvTornDown:
		if s.Phase != Closing {
			return s, Action{}
		}
		s.Phase = Closed
		return s, Action{Kind: ActDone}
	}

	switch s.Phase {
	case LoadingInitial:
		if ev.Kind != EvLoaded {
			break
		}
		s.Phase = Ready
		s.Exhausted = ev.Exhausted
		s.LimitReached = ev.LimitReached
		// A failed initial load still subscribes; the pager kept its
		// cursor so a page command retries the read.
		return s, Action{Kind: ActSubscribe}

	case Ready:
		if ev.Kind != EvSubscribed {
			break
		}
		s.Phase = AwaitingInput
		if ev.Err != nil {
			return s, Action{Kind: ActNotice, Level: LevelError, Text: ev.Err.Error()}
		}
		return s, Action{}

	case AwaitingInput:
		if ev.Kind != EvLine {
			break
		}
		cmd, text := ParseInput(ev.Line, s.PagingEnabled)
		switch cmd {
		case CmdQuit:
			s.Phase = Closing
			return s, Action{Kind: ActTeardown}
		case CmdPage:
			if s.Exhausted {
				return s, Action{Kind: ActNotice, Level: LevelInfo, Text: msgNoMore}
			}
			if s.LimitReached {
				return s, Action{Kind: ActNotice, Level: LevelWarn, Text: msgLimitReached}
			}
			s.Phase = Paging
			return s, Action{Kind: ActFetchPage}
		case CmdSubmit:
			s.Phase = Submitting
			return s, Action{Kind: ActSubmit, Text: text}
		}
		return s, Action{}

	case Paging:
		if ev.Kind != EvPageDone {
			break
		}
		s.Phase = AwaitingInput
		if ev.Err != nil {
			return s, Action{Kind: ActNotice, Level: LevelError, Text: ev.Err.Error()}
		}
		s.Exhausted = ev.Exhausted
		s.LimitReached = ev.LimitReached
		if ev.Count == 0 {
			return s, Action{Kind: ActNotice, Level: LevelInfo, Text: msgNoMore}
		}
		return s, Action{Kind: ActRenderPage}

	case Submitting:
		if ev.Kind != EvSubmitDone {
			break
		}
		s.Phase = AwaitingInput
		if ev.Err != nil {
			return s, Action{Kind: ActNotice, Level: LevelError, Text: ev.Err.Error()}
		}
		return s, Action{Kind: ActEcho}
	}

	return s, Action{}
}
