// Package status defines the connection status a handler returns and the
// action the connection layer takes for each value.
package status

import (
	"net/http"
	"strconv"
)

// Status is the outcome of handling one request. Negative values mean the
// connection should not continue normally.
type Status int

const (
	NotProcessed    Status = 0
	NeedMoreData    Status = 1
	Processed       Status = 2
	KeepAlive       Status = 3
	Websocket       Status = 4
	CloseConnection Status = -2
	InternalError   Status = -500
	NotImplemented  Status = -501
	Forbidden       Status = -502
)

// Action is what the connection layer does after a handler returns.
type Action int

const (
	// ActionContinue re-invokes the handler once more body is available.
	ActionContinue Action = iota
	// ActionFlush writes the response and applies the keep-alive policy.
	ActionFlush
	// ActionKeepAlive writes the response and keeps the socket open.
	ActionKeepAlive
	// ActionClose writes the response and closes the socket.
	ActionClose
	// ActionUpgrade hands the connection over; nothing is flushed.
	ActionUpgrade
	// ActionErrorPage writes an error page for HTTPCode.
	ActionErrorPage
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionFlush:
		return "flush"
	case ActionKeepAlive:
		return "keep-alive"
	case ActionClose:
		return "close"
	case ActionUpgrade:
		return "upgrade"
	case ActionErrorPage:
		return "error-page"
	default:
		return "action(" + strconv.Itoa(int(a)) + ")"
	}
}

// String returns the name of s.
func (s Status) String() string {
	switch s {
	case NotProcessed:
		return "NotProcessed"
	case NeedMoreData:
		return "NeedMoreData"
	case Processed:
		return "Processed"
	case KeepAlive:
		return "KeepAlive"
	case Websocket:
		return "Websocket"
	case CloseConnection:
		return "CloseConnection"
	case InternalError:
		return "InternalError"
	case NotImplemented:
		return "NotImplemented"
	case Forbidden:
		return "Forbidden"
	default:
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
}

// HTTPCode returns the status code the client sees for s. Zero means the
// handler's own code is used (or, for NeedMoreData, none applies yet).
// Unknown values map to 500.
func (s Status) HTTPCode() int {
	switch s {
	case NotProcessed:
		return http.StatusNotFound
	case Websocket:
		return http.StatusSwitchingProtocols
	case InternalError:
		return http.StatusInternalServerError
	case NotImplemented:
		return http.StatusNotImplemented
	case Forbidden:
		return http.StatusForbidden
	case NeedMoreData, Processed, KeepAlive, CloseConnection:
		return 0
	default:
		return http.StatusInternalServerError
	}
}

// Action returns the connection action for s.
func (s Status) Action() Action {
	switch s {
	case NeedMoreData:
		return ActionContinue
	case Processed:
		return ActionFlush
	case KeepAlive:
		return ActionKeepAlive
	case CloseConnection:
		return ActionClose
	case Websocket:
		return ActionUpgrade
	default:
		return ActionErrorPage
	}
}

// IsError reports whether s ends in an error page.
func (s Status) IsError() bool {
	return s.Action() == ActionErrorPage
}

// IsTerminal reports whether s ends the request/response cycle.
func (s Status) IsTerminal() bool {
	return s != NeedMoreData
}

// Known reports whether s is one of the defined values.
func (s Status) Known() bool {
	switch s {
	case NotProcessed, NeedMoreData, Processed, KeepAlive, Websocket,
		CloseConnection, InternalError, NotImplemented, Forbidden:
		return true
	}
	return false
}
