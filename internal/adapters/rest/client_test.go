package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, <-chan seen) {
	t.Helper()
	reqs := make(chan seen, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := seen{method: r.Method, path: r.URL.RequestURI(), auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&s.body)
		reqs <- s
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second, func() (string, error) { return "tok", nil }), reqs
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestJoinMeetingSendsBearer(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.Meeting{ID: "m 1", Title: "standup"})
	})

	m, err := c.JoinMeeting(context.Background(), "m 1")
	require.NoError(t, err)
	assert.Equal(t, "standup", m.Title)

	r := <-reqs
	assert.Equal(t, http.MethodPost, r.method)
	assert.Equal(t, "/api/meetings/m%201/join", r.path)
	assert.Equal(t, "Bearer tok", r.auth)
}

func TestInitiateCallBody(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, domain.Call{ID: "c1", CalleeID: "u2", Kind: domain.CallVideo})
	})

	call, err := c.InitiateCall(context.Background(), "u2", domain.CallVideo)
	require.NoError(t, err)
	assert.Equal(t, domain.CallID("c1"), call.ID)

	r := <-reqs
	assert.Equal(t, "/api/calls", r.path)
	assert.Equal(t, map[string]any{"callee_id": "u2", "call_type": "video"}, r.body)
}

func TestRejectCallReason(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.RejectCall(context.Background(), "c9", "busy"))
	r := <-reqs
	assert.Equal(t, "/api/calls/c9/reject", r.path)
	assert.Equal(t, "busy", r.body["reason"])
}

func TestStatusErrors(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/meetings/gone":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "meeting not found"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	})

	_, err := c.GetMeeting(context.Background(), "gone")
	require.ErrorIs(t, err, ErrNotFound)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "meeting not found", se.Message)

	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnauthorized)
}

func TestActiveCallNone(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	call, err := c.ActiveCall(context.Background())
	require.NoError(t, err)
	assert.Nil(t, call)
}

func TestCallHistoryLimit(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []domain.Call{{ID: "a"}, {ID: "b"}})
	})
	calls, err := c.CallHistory(context.Background(), 20)
	require.NoError(t, err)
	assert.Len(t, calls, 2)
	assert.Equal(t, "/api/calls/history?limit=20", (<-reqs).path)
}

func TestWebRTCConfigRouterError(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"error": "router unavailable"})
	})
	cfg, err := c.WebRTCConfig(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "router unavailable", cfg.Error)
	assert.Empty(t, cfg.RTPCapabilities)
}

func TestRequestAdmission(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, core.AdmissionTicket{Status: domain.Waiting, Position: 3})
	})
	ticket, err := c.RequestAdmission(context.Background(), "m1", "Ana")
	require.NoError(t, err)
	assert.Equal(t, 3, ticket.Position)
	r := <-reqs
	assert.Equal(t, "/api/meetings/m1/admission", r.path)
	assert.Equal(t, "Ana", r.body["display_name"])
}

func TestHostPassthroughs(t *testing.T) {
	c, reqs := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()
	require.NoError(t, c.RemoveCoHost(ctx, "m1", "u2"))
	require.NoError(t, c.MuteAll(ctx, "m1"))
	require.NoError(t, c.DeleteRecording(ctx, "r1"))

	r := <-reqs
	assert.Equal(t, http.MethodDelete, r.method)
	assert.Equal(t, "/api/meetings/m1/co-hosts/u2", r.path)
	assert.Equal(t, "/api/meetings/m1/mute-all", (<-reqs).path)
	assert.Equal(t, "/api/recordings/r1", (<-reqs).path)
}
