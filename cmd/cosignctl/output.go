package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dalemusser/cosign/internal/app/store/audit"
	"github.com/dalemusser/cosign/internal/app/system/notify"
	"github.com/dalemusser/cosign/internal/app/system/quorum"
	"github.com/dalemusser/cosign/internal/domain/models"
	"gopkg.in/yaml.v3"
)

var outputFormats = []string{"json", "yaml", "table"}

// render writes v in the selected format. YAML output goes through the
// JSON encoding first so both formats use the same field names.
func render(w io.Writer, format string, v any) error {
	if format == "table" {
		return renderTable(w, v)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if format != "yaml" {
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func renderTable(w io.Writer, v any) error {
	var t *table.Table
	switch x := v.(type) {
	case models.Organization:
		t = organizationTable([]models.Organization{x})
	case []models.Organization:
		t = organizationTable(x)
	case models.Proposal:
		t = proposalTable([]models.Proposal{x})
	case []models.Proposal:
		t = proposalTable(x)
	case []audit.Event:
		t = historyTable(x)
	case notify.Event:
		// streamed one at a time, so a plain line instead of a boxed table
		_, err := fmt.Fprintln(w, eventLine(x))
		return err
	default:
		return fmt.Errorf("table output is not available for %T", v)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func organizationTable(orgs []models.Organization) *table.Table {
	t := newTable("NAME", "THRESHOLD", "MEMBERS")
	for _, o := range orgs {
		t.Row(o.Name, strconv.Itoa(o.Threshold), strings.Join(o.Addresses(), "\n"))
	}
	return t
}

func progressCell(p models.Proposal) string {
	pr := quorum.ProgressOf(p.Threshold, p.Approvals)
	return fmt.Sprintf("%d/%d", pr.Approved, pr.Required)
}

func proposalTable(list []models.Proposal) *table.Table {
	t := newTable("ID", "STATUS", "APPROVALS", "INITIATOR", "AMOUNT", "CREATED")
	for _, p := range list {
		amount := strings.TrimSpace(p.Payload.Amount + " " + p.Payload.Token)
		t.Row(p.ID, string(p.Status), progressCell(p), p.Initiator, amount,
			p.CreatedAt.UTC().Format(time.RFC3339))
	}
	return t
}

func historyTable(events []audit.Event) *table.Table {
	t := newTable("TIME", "EVENT", "ACTOR", "OUTCOME")
	for _, ev := range events {
		outcome := "ok"
		if !ev.Success {
			outcome = ev.FailureReason
		}
		t.Row(ev.Timestamp.UTC().Format(time.RFC3339), ev.EventType, ev.Actor, outcome)
	}
	return t
}

func eventLine(ev notify.Event) string {
	ts := ev.Time.UTC().Format(time.RFC3339)
	switch ev.Type {
	case notify.TypeProposalCreated:
		line := fmt.Sprintf("%s  %-18s %s", ts, ev.Type, ev.ProposalID)
		if ev.Progress != nil {
			line += fmt.Sprintf("  %d/%d", ev.Progress.Approved, ev.Progress.Required)
		}
		return line
	case notify.TypeProposalApproved:
		return fmt.Sprintf("%s  %-18s %s  %d/%d by %s", ts, ev.Type, ev.ProposalID,
			ev.ApprovalCount, ev.Threshold, ev.Approver)
	case notify.TypeProposalConfirmed:
		return fmt.Sprintf("%s  %-18s %s", ts, ev.Type, ev.ProposalID)
	default:
		return fmt.Sprintf("%s  %-18s %s", ts, ev.Type, ev.Identity)
	}
}
