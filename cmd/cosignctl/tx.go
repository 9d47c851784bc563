package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/cosign/internal/app/system/address"
	"github.com/dalemusser/cosign/internal/client"
	"github.com/dalemusser/cosign/internal/domain/models"
	"github.com/spf13/cobra"
)

func txCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"proposal"},
		Short:   "Initiate, confirm and inspect transfer proposals",
	}
	cmd.AddCommand(txInitiateCmd(g))
	cmd.AddCommand(txConfirmCmd(g))
	cmd.AddCommand(txGetCmd(g))
	cmd.AddCommand(txListCmd(g))
	cmd.AddCommand(txHistoryCmd(g))
	return cmd
}

func txInitiateCmd(g *globals) *cobra.Command {
	var payload models.TransferPayload
	cmd := &cobra.Command{
		Use:   "initiate ORG INITIATOR",
		Short: "Create a proposal; the initiator counts as the first approval",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			p, err := c.Initiate(ctx, args[0], args[1], payload)
			if err != nil {
				return err
			}
			return render(g.out, g.output, p)
		},
	}
	cmd.Flags().StringVar(&payload.From, "from", "", "Source account")
	cmd.Flags().StringVar(&payload.To, "to", "", "Destination account")
	cmd.Flags().StringVar(&payload.Amount, "amount", "", "Amount, passed through verbatim")
	cmd.Flags().StringVar(&payload.Token, "token", "", "Token symbol")
	cmd.Flags().StringVar(&payload.Network, "network", "", "Network name")
	return cmd
}

func txConfirmCmd(g *globals) *cobra.Command {
	var proposalID string
	cmd := &cobra.Command{
		Use:   "confirm ORG ADDRESS",
		Short: "Approve a proposal (the oldest pending one unless --id is given)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			p, err := c.Confirm(ctx, args[0], args[1], proposalID)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Benign && apiErr.Proposal != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "note: %s\n", apiErr.Kind)
					return render(g.out, g.output, apiErr.Proposal)
				}
				return err
			}
			return render(g.out, g.output, p)
		},
	}
	cmd.Flags().StringVar(&proposalID, "id", "", "Proposal id to approve")
	return cmd
}

func txGetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			p, err := c.GetProposal(ctx, args[0])
			if err != nil {
				return err
			}
			return render(g.out, g.output, p)
		},
	}
}

func txListCmd(g *globals) *cobra.Command {
	var (
		pendingOnly bool
		awaiting    string
	)
	cmd := &cobra.Command{
		Use:   "list ORG",
		Short: "List an organization's proposals in creation order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			list, err := c.ListProposals(ctx, args[0])
			if err != nil {
				return err
			}
			if awaiting != "" {
				if err := address.Validate(awaiting); err != nil {
					return err
				}
			}
			kept := list[:0]
			for _, p := range list {
				if (pendingOnly || awaiting != "") && p.IsConfirmed() {
					continue
				}
				if awaiting != "" && approvedBy(p, awaiting) {
					continue
				}
				kept = append(kept, p)
			}
			return render(g.out, g.output, kept)
		},
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only show pending proposals")
	cmd.Flags().StringVar(&awaiting, "awaiting", "", "Only show pending proposals this address has not approved yet")
	return cmd
}

func approvedBy(p models.Proposal, addr string) bool {
	for _, a := range p.Approvals {
		if address.Equal(a, addr) {
			return true
		}
	}
	return false
}

func txHistoryCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Show the audit trail of a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			events, err := c.History(ctx, args[0])
			if err != nil {
				return err
			}
			return render(g.out, g.output, events)
		},
	}
}
