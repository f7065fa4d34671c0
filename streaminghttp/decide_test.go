package streaminghttp

import "testing"

func TestDecide(t *testing.T) {
	cases := []struct {
		hasSessionID bool
		found        bool
		initialize   bool
		want         action
	}{
		{hasSessionID: false, found: false, initialize: true, want: actionCreate},
		{hasSessionID: false, found: false, initialize: false, want: actionRejectNoSession},
		// A lookup result without a header is meaningless and must not matter.
		{hasSessionID: false, found: true, initialize: true, want: actionCreate},
		{hasSessionID: false, found: true, initialize: false, want: actionRejectNoSession},
		{hasSessionID: true, found: true, initialize: false, want: actionContinue},
		// A repeated initialize on a live session is the server's problem.
		{hasSessionID: true, found: true, initialize: true, want: actionContinue},
		{hasSessionID: true, found: false, initialize: false, want: actionRejectUnknownSession},
		{hasSessionID: true, found: false, initialize: true, want: actionRejectUnknownSession},
	}
	for _, tc := range cases {
		got := decide(tc.hasSessionID, tc.found, tc.initialize)
		if got != tc.want {
			t.Fatalf("decide(%v, %v, %v): want %s, got %s", tc.hasSessionID, tc.found, tc.initialize, tc.want, got)
		}
	}
}

func TestDecideNeverCreatesWithoutInitialize(t *testing.T) {
	for _, has := range []bool{false, true} {
		for _, found := range []bool{false, true} {
			if decide(has, found, false) == actionCreate {
				t.Fatalf("decide(%v, %v, false) created a session", has, found)
			}
		}
	}
}
