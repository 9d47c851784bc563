// Package client is a small typed client for the coordinator's HTTP and
// websocket API. cosignctl is built on it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/cosign/internal/app/store/audit"
	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/gorilla/websocket"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status   int
	Kind     string
	Message  string
	Benign   bool
	Proposal *models.Proposal
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Kind)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

// IsBenign reports whether err is an API error the caller may treat as
// "already done" (duplicate approval, already confirmed).
func IsBenign(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Benign
}

// KindOf returns the machine-readable kind of an API error, or "".
func KindOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithDialer replaces the websocket dialer used by Watch.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New returns a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateOrganization registers an organization.
func (c *Client) CreateOrganization(ctx context.Context, name string, members []string, threshold int) (models.Organization, error) {
	body := map[string]any{"name": name, "members": members, "threshold": threshold}
	var org models.Organization
	err := c.do(ctx, http.MethodPost, "/organizations", nil, body, &org)
	return org, err
}

func (c *Client) GetOrganization(ctx context.Context, name string) (models.Organization, error) {
	var org models.Organization
	err := c.do(ctx, http.MethodGet, "/organization", url.Values{"name": {name}}, nil, &org)
	return org, err
}

// OrganizationsFor lists the organizations addr belongs to.
func (c *Client) OrganizationsFor(ctx context.Context, addr string) ([]models.Organization, error) {
	var orgs []models.Organization
	err := c.do(ctx, http.MethodGet, "/organizations/"+url.PathEscape(addr), nil, nil, &orgs)
	return orgs, err
}

func (c *Client) InviteMember(ctx context.Context, org, addr string) (models.Organization, error) {
	var out models.Organization
	err := c.do(ctx, http.MethodPost, "/organization/"+url.PathEscape(org)+"/members", nil,
		map[string]string{"address": addr}, &out)
	return out, err
}

// Initiate creates a proposal with initiator as its first approver.
func (c *Client) Initiate(ctx context.Context, org, initiator string, payload models.TransferPayload) (models.Proposal, error) {
	body := map[string]any{
		"organization_name": org,
		"initiator":         initiator,
		"payload":           payload,
	}
	var p models.Proposal
	err := c.do(ctx, http.MethodPost, "/transaction/initiate", nil, body, &p)
	return p, err
}

// Confirm approves proposalID as addr. An empty proposalID approves the
// oldest pending proposal of org. Benign failures come back as an *APIError
// carrying the current proposal.
func (c *Client) Confirm(ctx context.Context, org, addr, proposalID string) (models.Proposal, error) {
	body := map[string]string{"organization_name": org, "address": addr}
	if proposalID != "" {
		body["proposal_id"] = proposalID
	}
	var p models.Proposal
	err := c.do(ctx, http.MethodPost, "/transaction/confirm", nil, body, &p)
	return p, err
}

func (c *Client) GetProposal(ctx context.Context, id string) (models.Proposal, error) {
	var p models.Proposal
	err := c.do(ctx, http.MethodGet, "/transaction/"+url.PathEscape(id), nil, nil, &p)
	return p, err
}

// ListProposals returns org's proposals in creation order.
func (c *Client) ListProposals(ctx context.Context, org string) ([]models.Proposal, error) {
	var list []models.Proposal
	err := c.do(ctx, http.MethodGet, "/organization/"+url.PathEscape(org)+"/transactions", nil, nil, &list)
	return list, err
}

// History returns the audit trail of one proposal.
func (c *Client) History(ctx context.Context, id string) ([]audit.Event, error) {
	var events []audit.Event
	err := c.do(ctx, http.MethodGet, "/transaction/"+url.PathEscape(id)+"/history", nil, nil, &events)
	return events, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	// path segments arrive already escaped
	target := c.base.String() + path
	if query != nil {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var payload struct {
		Error    string           `json:"error"`
		Message  string           `json:"message"`
		Benign   bool             `json:"benign"`
		Proposal *models.Proposal `json:"proposal"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := &APIError{Status: resp.StatusCode}
	if json.Unmarshal(b, &payload) == nil && payload.Error != "" {
		apiErr.Kind = payload.Error
		apiErr.Message = payload.Message
		apiErr.Benign = payload.Benign
		apiErr.Proposal = payload.Proposal
		return apiErr
	}
	apiErr.Kind = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	apiErr.Message = strings.TrimSpace(string(b))
	return apiErr
}
