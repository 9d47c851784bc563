package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/cosign/internal/app/coordinator"
	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/features/ws"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/dalemusser/cosign/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	srv     *httptest.Server
	hub     *notify.Hub
	coord   *coordinator.Coordinator
	members []string
}

func newTestServer(t *testing.T, queueSize int, opts ws.Options) testServer {
	t.Helper()
	logger := zap.NewNop()
	hub := notify.NewHub(queueSize, logger, nil)
	orgs := testutil.NewMemOrgs()
	coord := coordinator.New(orgs, testutil.NewMemProposals(orgs), hub, nil, nil, logger)

	members := testutil.Addrs(3)
	_, err := coord.CreateOrganization(context.Background(), "Vault", members, 2)
	require.NoError(t, err)
	_, err = coord.CreateOrganization(context.Background(), "Other", members, 1)
	require.NoError(t, err)

	h := ws.NewHandler(coord, hub, opts, uierrors.NewErrorLogger(logger), logger)
	r := chi.NewRouter()
	r.Mount("/ws", ws.Routes(h))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return testServer{srv: srv, hub: hub, coord: coord, members: members}
}

func (s testServer) url(org, addr string) string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws/organization/" + org + "/" + addr
}

func (s testServer) dial(t *testing.T, org, addr string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(s.url(org, addr), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s testServer) waitSubscribers(t *testing.T, org string, n int) {
	t.Helper()
	assert.Eventually(t, func() bool { return s.hub.SubscriberCount(org) == n },
		2*time.Second, 10*time.Millisecond, "want %d subscribers on %s", n, org)
}

func readEvent(t *testing.T, conn *websocket.Conn) notify.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev notify.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestServeWS_StreamsLifecycleInOrder(t *testing.T) {
	s := newTestServer(t, 16, ws.Options{})
	conn := s.dial(t, "Vault", strings.ToLower(s.members[2]))
	s.waitSubscribers(t, "Vault", 1)

	ctx := context.Background()
	p, err := s.coord.InitiateProposal(ctx, "Vault", s.members[0], models.TransferPayload{Amount: "5"})
	require.NoError(t, err)
	_, err = s.coord.SubmitApproval(ctx, p.ID, s.members[1])
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, notify.TypeProposalCreated, ev.Type)
	require.NotNil(t, ev.Proposal)
	assert.Equal(t, p.ID, ev.Proposal.ID)

	ev = readEvent(t, conn)
	assert.Equal(t, notify.TypeProposalApproved, ev.Type)
	assert.Equal(t, s.members[1], ev.Approver)
	assert.Equal(t, 2, ev.ApprovalCount)

	ev = readEvent(t, conn)
	assert.Equal(t, notify.TypeProposalConfirmed, ev.Type)
	assert.Equal(t, p.ID, ev.ProposalID)
}

func TestServeWS_OnlyOwnOrganization(t *testing.T) {
	s := newTestServer(t, 16, ws.Options{})
	conn := s.dial(t, "Vault", s.members[0])
	s.waitSubscribers(t, "Vault", 1)

	ctx := context.Background()
	_, err := s.coord.InitiateProposal(ctx, "Other", s.members[0], models.TransferPayload{})
	require.NoError(t, err)
	_, err = s.coord.InviteMember(ctx, "Vault", testutil.Addr(40))
	require.NoError(t, err)

	ev := readEvent(t, conn)
	assert.Equal(t, notify.TypeMemberInvited, ev.Type, "events of Other are never delivered")
}

func TestServeWS_RejectsBeforeUpgrade(t *testing.T) {
	s := newTestServer(t, 16, ws.Options{})

	tests := []struct {
		name   string
		org    string
		addr   string
		status int
	}{
		{"unknown organization", "Ghost", s.members[0], http.StatusNotFound},
		{"non-member", "Vault", testutil.Addr(60), http.StatusForbidden},
		{"bad address", "Vault", "alice", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(s.url(tt.org, tt.addr), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, s.hub.SubscriberCount("Vault"))
}

func TestServeWS_ClientCloseUnsubscribes(t *testing.T) {
	s := newTestServer(t, 16, ws.Options{})
	conn := s.dial(t, "Vault", s.members[0])
	s.waitSubscribers(t, "Vault", 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	s.waitSubscribers(t, "Vault", 0)
}

func TestServeWS_HubCloseEndsConnection(t *testing.T) {
	s := newTestServer(t, 16, ws.Options{})
	conn := s.dial(t, "Vault", s.members[0])
	s.waitSubscribers(t, "Vault", 1)

	s.hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestServeWS_PingsKeepConnectionAlive(t *testing.T) {
	s := newTestServer(t, 16, ws.Options{PingInterval: 20 * time.Millisecond, PongWait: 100 * time.Millisecond})
	conn := s.dial(t, "Vault", s.members[0])

	pings := make(chan struct{}, 16)
	conn.SetPingHandler(func(data string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-pings:
		case <-time.After(2 * time.Second):
			t.Fatal("no ping received")
		}
	}
	// Several pong windows have passed; the subscription is still live.
	assert.Equal(t, 1, s.hub.SubscriberCount("Vault"))
}

func TestServeWS_OriginCheck(t *testing.T) {
	s := newTestServer(t, 16, ws.Options{AllowedOrigins: []string{"https://wallet.example"}})

	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(s.url("Vault", s.members[0]), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	s.waitSubscribers(t, "Vault", 0)

	header = http.Header{"Origin": {"https://wallet.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(s.url("Vault", s.members[0]), header)
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()
}

func TestServeWS_EscapedOrganizationName(t *testing.T) {
	s := newTestServer(t, 16, ws.Options{})
	ctx := context.Background()
	_, err := s.coord.CreateOrganization(ctx, "ops/treasury", s.members, 2)
	require.NoError(t, err)

	conn := s.dial(t, url.PathEscape("ops/treasury"), s.members[0])
	s.waitSubscribers(t, "ops/treasury", 1)

	p, err := s.coord.InitiateProposal(ctx, "ops/treasury", s.members[1], models.TransferPayload{Amount: "3"})
	require.NoError(t, err)
	ev := readEvent(t, conn)
	assert.Equal(t, notify.TypeProposalCreated, ev.Type)
	assert.Equal(t, p.ID, ev.ProposalID)
	assert.Equal(t, "ops/treasury", ev.Organization)
}
