package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/cosign/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestOrgGet_YAML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organization", r.URL.Path)
		assert.Equal(t, "Treasury", r.URL.Query().Get("name"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Treasury","threshold":2,"members":[{"address":"0xA"}]}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "org", "get", "Treasury", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Treasury")
	assert.Contains(t, out, "threshold: 2")
	assert.Contains(t, out, "address:")
	assert.Contains(t, out, "0xA")
}

func TestOrgCreate_SendsMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Name      string   `json:"name"`
			Members   []string `json:"members"`
			Threshold int      `json:"threshold"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Vault", body.Name)
		assert.Equal(t, []string{"0x1", "0x2"}, body.Members)
		assert.Equal(t, 2, body.Threshold)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"name":"Vault","threshold":2}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "org", "create", "Vault", "-m", "0x1,0x2", "-t", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Vault"`)
}

func TestTxConfirm_BenignPrintsProposal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"already_confirmed","message":"proposal already confirmed","benign":true,"proposal":{"id":"p1","status":"confirmed"}}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "tx", "confirm", "Vault", "0x1", "--id", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "confirmed"`)
}

func TestTxGet_ErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"proposal not found"}`))
	}))
	defer srv.Close()

	_, err := run(t, srv, "tx", "get", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_found")
}

func TestRoot_RejectsUnknownOutput(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := run(t, srv, "tx", "get", "x", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
	assert.ErrorContains(t, err, "table")
}

func TestOrgGet_Table(t *testing.T) {
	m := testutil.Addrs(2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Treasury","threshold":2,"members":[{"address":"` + m[0] + `"},{"address":"` + m[1] + `"}]}`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "org", "get", "Treasury", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "THRESHOLD")
	assert.Contains(t, out, "Treasury")
	assert.Contains(t, out, m[0])
	assert.Contains(t, out, m[1])
}

func TestTxList_AwaitingFiltersOwnApprovals(t *testing.T) {
	m := testutil.Addrs(3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organization/Vault/transactions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"p-mine","status":"pending","threshold":3,"approvals":["` + m[0] + `","` + m[1] + `"]},
			{"id":"p-open","status":"pending","threshold":3,"approvals":["` + m[0] + `"]},
			{"id":"p-done","status":"confirmed","threshold":2,"approvals":["` + m[0] + `","` + m[2] + `"]}
		]`))
	}))
	defer srv.Close()

	out, err := run(t, srv, "tx", "list", "Vault", "--awaiting", strings.ToLower(m[1]), "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "p-open")
	assert.Contains(t, out, "1/3")
	assert.NotContains(t, out, "p-mine", "already approved in another casing")
	assert.NotContains(t, out, "p-done")

	out, err = run(t, srv, "tx", "list", "Vault", "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "p-mine")
	assert.NotContains(t, out, "p-done")

	_, err = run(t, srv, "tx", "list", "Vault", "--awaiting", "nope")
	assert.Error(t, err)
}

func TestTable_UnsupportedValue(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, render(&out, "table", map[string]int{"x": 1}))
}
