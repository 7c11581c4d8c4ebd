package web

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mangrovewatch/mangrove/flow"
	"go.uber.org/zap"
)

const (
	liveWriteWait = 10 * time.Second
	liveReadLimit = 512
)

type verifyView struct {
	// Live is set when the browser should run the check over a websocket.
	Live     bool
	LiveURL  string
	Token    string
	Email    string
	State    flow.VerificationState
	Redirect string
}

// liveCommand is sent by the browser on the live channel.
type liveCommand struct {
	Action string `json:"action"`
}

// liveMessage is pushed to the browser on the live channel. Exactly one of
// State and Toast is set.
type liveMessage struct {
	State    *flow.VerificationState `json:"state,omitempty"`
	Toast    *flow.Toast             `json:"toast,omitempty"`
	Redirect string                  `json:"redirect,omitempty"`
}

func (s *Server) handleVerifyPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	email := r.URL.Query().Get("email")
	live := url.URL{Path: "/auth/verify/live", RawQuery: url.Values{
		"token": {token},
		"email": {email},
	}.Encode()}
	s.render(w, r, http.StatusOK, "verify", "Email verification", nil, verifyView{
		Live:    true,
		LiveURL: live.String(),
		Token:   token,
		Email:   email,
		State:   flow.VerificationState{View: flow.VerifyVerifying, Countdown: 3},
	})
}

// handleVerifySubmit runs the check inside the request for browsers without
// scripts. The countdown is replaced by a refresh header.
func (s *Server) handleVerifySubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	x := &exchange{}
	ctrl := flow.NewVerificationController(s.identity, x, x, s.clock)
	st := ctrl.Mount(r.Context(), r.PostForm)
	ctrl.Close()

	status := http.StatusOK
	view := verifyView{State: st}
	switch st.View {
	case flow.VerifySuccess:
		view.Redirect = signInPath
		w.Header().Set("Refresh", "3; url="+signInPath)
	case flow.VerifyError:
		status = http.StatusBadRequest
	}
	s.render(w, r, status, "verify", "Email verification", x.Toasts(), view)
}

// handleVerifyLive verifies the link and streams every state change until
// the controller leaves for sign in or the browser goes away.
func (s *Server) handleVerifyLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	toasts := make(chan flow.Toast, 4)
	notify := flow.NotifierFunc(func(t flow.Toast) {
		select {
		case toasts <- t:
		default:
		}
	})
	ctrl := flow.NewVerificationController(s.identity, nil, notify, s.clock)
	defer ctrl.Close()

	states, cancel := ctrl.Subscribe()
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	commands := make(chan string)
	go s.readLive(conn, commands, done)

	params := r.URL.Query()
	ctx := r.Context()
	go ctrl.Mount(ctx, params)

	for {
		select {
		case st, ok := <-states:
			if !ok {
				return
			}
			msg := liveMessage{State: &st}
			if st.Left {
				msg.Redirect = signInPath
			}
			if err := writeLive(conn, msg); err != nil {
				return
			}
			if st.Left {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(liveWriteWait))
				return
			}
		case t := <-toasts:
			if err := writeLive(conn, liveMessage{Toast: &t}); err != nil {
				return
			}
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			switch cmd {
			case "continue":
				ctrl.Continue()
			case "try-again":
				ctrl.TryAgain()
			}
		case <-ctx.Done():
			return
		}
	}
}

// readLive forwards browser commands until the connection fails.
func (s *Server) readLive(conn *websocket.Conn, out chan<- string, done <-chan struct{}) {
	defer close(out)
	conn.SetReadLimit(liveReadLimit)
	for {
		var cmd liveCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		select {
		case out <- cmd.Action:
		case <-done:
			return
		}
	}
}

func writeLive(conn *websocket.Conn, msg liveMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(msg)
}
