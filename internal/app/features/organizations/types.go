// internal/app/features/organizations/types.go
package organizations

import (
	"bytes"
	"encoding/json"
)

// createRequest is the body of POST /organizations.
type createRequest struct {
	Name      string        `json:"name"`
	Threshold int           `json:"threshold"`
	Members   []memberInput `json:"members"`
}

// memberInput accepts either {"address":"0x…"} or a bare "0x…" string.
type memberInput struct {
	Address string `json:"address"`
}

func (m *memberInput) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte(`"`)) {
		return json.Unmarshal(b, &m.Address)
	}
	type plain memberInput
	return json.Unmarshal(b, (*plain)(m))
}

func (r createRequest) addresses() []string {
	out := make([]string, 0, len(r.Members))
	for _, m := range r.Members {
		out = append(out, m.Address)
	}
	return out
}

// inviteRequest is the body of POST /organization/{name}/members.
type inviteRequest struct {
	Address string `json:"address"`
}
