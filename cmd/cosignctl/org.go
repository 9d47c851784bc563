package main

import (
	"context"

	"github.com/spf13/cobra"
)

func orgCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}
	cmd.AddCommand(orgCreateCmd(g))
	cmd.AddCommand(orgGetCmd(g))
	cmd.AddCommand(orgForCmd(g))
	cmd.AddCommand(orgInviteCmd(g))
	return cmd
}

func orgCreateCmd(g *globals) *cobra.Command {
	var (
		members   []string
		threshold int
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an organization",
		Example: `  cosignctl org create "Treasury" --member 0xAbc... --member 0xDef... --threshold 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			org, err := c.CreateOrganization(ctx, args[0], members, threshold)
			if err != nil {
				return err
			}
			return render(g.out, g.output, org)
		},
	}
	cmd.Flags().StringSliceVarP(&members, "member", "m", nil, "Member address (repeatable or comma-separated)")
	cmd.Flags().IntVarP(&threshold, "threshold", "t", 1, "Approvals required to confirm a proposal")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}

func orgGetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show one organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			org, err := c.GetOrganization(ctx, args[0])
			if err != nil {
				return err
			}
			return render(g.out, g.output, org)
		},
	}
}

func orgForCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "for ADDRESS",
		Short: "List the organizations an address belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			orgs, err := c.OrganizationsFor(ctx, args[0])
			if err != nil {
				return err
			}
			return render(g.out, g.output, orgs)
		},
	}
}

func orgInviteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "invite NAME ADDRESS",
		Short: "Add a member to an organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			org, err := c.InviteMember(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return render(g.out, g.output, org)
		},
	}
}
