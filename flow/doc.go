// Package flow drives the authentication screens: which view of a flow is
// showing, which form errors are visible, and when the user leaves the
// flow.
//
// Each controller is a small state machine built on Machine, talks to an
// identity.Provider for its asynchronous operations and uses an injected
// Navigator to leave the flow. Controllers are created per screen mount and
// are safe for concurrent use; a Gate rejects a second submit while one is
// in flight.
package flow
