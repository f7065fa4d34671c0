package streaminghttp

// action is what the transport does with an inbound message before any
// session work happens.
type action int

const (
	actionCreate action = iota
	actionRejectNoSession
	actionContinue
	actionRejectUnknownSession
)

func (a action) String() string {
	switch a {
	case actionCreate:
		return "create"
	case actionRejectNoSession:
		return "reject_no_session"
	case actionContinue:
		return "continue"
	case actionRejectUnknownSession:
		return "reject_unknown_session"
	}
	return "unknown"
}

// decide maps the request shape onto an action. It performs no I/O.
//
//	session header | registry hit | initialize | action
//	no             | -            | yes        | create
//	no             | -            | no         | 400
//	yes            | yes          | -          | continue
//	yes            | no           | -          | 404
func decide(hasSessionID, sessionFound, isInitialize bool) action {
	if !hasSessionID {
		if isInitialize {
			return actionCreate
		}
		return actionRejectNoSession
	}
	if sessionFound {
		return actionContinue
	}
	return actionRejectUnknownSession
}
