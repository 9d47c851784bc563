package transactions_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dalemusser/cosign/internal/app/coordinator"
	uierrors "github.com/dalemusser/cosign/internal/app/features/errors"
	"github.com/dalemusser/cosign/internal/app/features/transactions"
	"github.com/dalemusser/cosign/internal/app/store/audit"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/dalemusser/cosign/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHistory struct {
	mu     sync.Mutex
	events map[string][]audit.Event
}

func (f *fakeHistory) History(_ context.Context, id string) ([]audit.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.Event{}, f.events[id]...), nil
}

type testServer struct {
	router  http.Handler
	coord   *coordinator.Coordinator
	pub     *testutil.Recorder
	history *fakeHistory
	members []string
}

// newTestServer creates organization "Vault" with three members and the
// given threshold.
func newTestServer(t *testing.T, threshold int) testServer {
	t.Helper()
	logger := zap.NewNop()
	orgs := testutil.NewMemOrgs()
	pub := &testutil.Recorder{}
	coord := coordinator.New(orgs, testutil.NewMemProposals(orgs), pub, nil, nil, logger)

	members := testutil.Addrs(3)
	_, err := coord.CreateOrganization(context.Background(), "Vault", members, threshold)
	require.NoError(t, err)

	history := &fakeHistory{events: map[string][]audit.Event{}}
	h := transactions.NewHandler(coord, history, uierrors.NewErrorLogger(logger), logger)
	r := chi.NewRouter()
	r.Mount("/transaction", transactions.Routes(h, nil))
	return testServer{router: r, coord: coord, pub: pub, history: history, members: members}
}

func (s testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s testServer) initiate(t *testing.T, initiator string) models.Proposal {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/transaction/initiate",
		`{"organization_name":"Vault","initiator":"`+initiator+`","payload":{"from":"0xa","to":"0xb","amount":"1.5","token":"ETH","network":"Ethereum"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var p models.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestHandleInitiate(t *testing.T) {
	s := newTestServer(t, 2)

	p := s.initiate(t, strings.ToLower(s.members[0]))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.ProposalPending, p.Status)
	assert.Equal(t, []string{s.members[0]}, p.Approvals)
	assert.Equal(t, "1.5", p.Payload.Amount)
	assert.Equal(t, []notify.EventType{notify.TypeProposalCreated}, s.pub.Types())
}

func TestHandleInitiate_Failures(t *testing.T) {
	s := newTestServer(t, 2)

	rec := s.do(t, http.MethodPost, "/transaction/initiate", `{"organization_name":"Ghost","initiator":"`+s.members[0]+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), coordinator.KindOrganizationNotFound)

	rec = s.do(t, http.MethodPost, "/transaction/initiate", `{"organization_name":"Vault","initiator":"`+testutil.Addr(50)+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), coordinator.KindNotAMember)

	rec = s.do(t, http.MethodPost, "/transaction/initiate", `{"initiator":"`+s.members[0]+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, s.pub.Types())
}

func TestHandleConfirm_ByProposalID(t *testing.T) {
	s := newTestServer(t, 3)
	p := s.initiate(t, s.members[0])

	rec := s.do(t, http.MethodPost, "/transaction/confirm",
		`{"organization_name":"Vault","address":"`+s.members[1]+`","proposal_id":"`+p.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got models.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.ProposalPending, got.Status)
	assert.Len(t, got.Approvals, 2)

	rec = s.do(t, http.MethodPost, "/transaction/confirm",
		`{"organization_name":"Vault","address":"`+s.members[2]+`","proposal_id":"`+p.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.ProposalConfirmed, got.Status)

	assert.Equal(t, []notify.EventType{
		notify.TypeProposalCreated,
		notify.TypeProposalApproved,
		notify.TypeProposalApproved,
		notify.TypeProposalConfirmed,
	}, s.pub.Types())
}

func TestHandleConfirm_ByOrganization(t *testing.T) {
	s := newTestServer(t, 2)
	p := s.initiate(t, s.members[0])

	rec := s.do(t, http.MethodPost, "/transaction/confirm",
		`{"organization_name":"Vault","address":"`+s.members[1]+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got models.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, models.ProposalConfirmed, got.Status)
}

func TestHandleConfirm_BenignFailuresCarrySnapshot(t *testing.T) {
	s := newTestServer(t, 2)
	p := s.initiate(t, s.members[0])
	body := func(addr string) string {
		return `{"organization_name":"Vault","address":"` + addr + `","proposal_id":"` + p.ID + `"}`
	}

	rec := s.do(t, http.MethodPost, "/transaction/confirm", body(strings.ToLower(s.members[0])))
	require.Equal(t, http.StatusConflict, rec.Code)
	var resp uierrors.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, coordinator.KindDuplicateApproval, resp.Error)
	assert.True(t, resp.Benign)
	require.NotNil(t, resp.Proposal)
	assert.Len(t, resp.Proposal.Approvals, 1)

	rec = s.do(t, http.MethodPost, "/transaction/confirm", body(s.members[1]))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/transaction/confirm", body(s.members[2]))
	require.Equal(t, http.StatusConflict, rec.Code)
	resp = uierrors.Response{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, coordinator.KindAlreadyConfirmed, resp.Error)
	assert.True(t, resp.Benign)
	require.NotNil(t, resp.Proposal)
	assert.Equal(t, models.ProposalConfirmed, resp.Proposal.Status)
}

func TestHandleConfirm_HardFailures(t *testing.T) {
	s := newTestServer(t, 2)
	p := s.initiate(t, s.members[0])

	rec := s.do(t, http.MethodPost, "/transaction/confirm",
		`{"organization_name":"Vault","address":"`+testutil.Addr(77)+`","proposal_id":"`+p.ID+`"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"proposal"`)

	rec = s.do(t, http.MethodPost, "/transaction/confirm",
		`{"organization_name":"Vault","address":"`+s.members[1]+`","proposal_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/transaction/confirm", `{"address":"`+s.members[1]+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	got, err := s.coord.GetProposal(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Approvals, 1, "rejected approvals leave the proposal unchanged")
}

func TestServeView(t *testing.T) {
	s := newTestServer(t, 2)
	p := s.initiate(t, s.members[0])

	rec := s.do(t, http.MethodGet, "/transaction/"+p.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, p.ID, got.ID)

	rec = s.do(t, http.MethodGet, "/transaction/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHistory(t *testing.T) {
	s := newTestServer(t, 2)
	p := s.initiate(t, s.members[0])
	s.history.events[p.ID] = []audit.Event{
		{ProposalID: p.ID, EventType: audit.EventProposalInitiated, Actor: s.members[0], Success: true},
	}

	rec := s.do(t, http.MethodGet, "/transaction/"+p.ID+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []audit.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventProposalInitiated, events[0].EventType)

	rec = s.do(t, http.MethodGet, "/transaction/nope/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
