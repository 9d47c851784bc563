// Command cosignctl is the command-line client of the cosign approval
// coordinator.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dalemusser/cosign/internal/client"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	server  string
	output  string
	timeout time.Duration
	out     io.Writer
}

func (g *globals) client() (*client.Client, error) {
	return client.New(g.server)
}

func main() {
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(out io.Writer) *cobra.Command {
	g := &globals{out: out}

	server := os.Getenv("COSIGN_SERVER")
	if server == "" {
		server = defaultServer
	}

	cmd := &cobra.Command{
		Use:   "cosignctl",
		Short: "Client for the cosign approval coordinator",
		Long: `cosignctl talks to a cosign server: it manages organizations,
initiates and confirms transfer proposals, and follows an organization's
live notifications.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range outputFormats {
				if g.output == f {
					return nil
				}
			}
			return fmt.Errorf("unknown output format %q (want %s)", g.output, strings.Join(outputFormats, ", "))
		},
	}
	cmd.SetOut(out)

	cmd.PersistentFlags().StringVar(&g.server, "server", server, "Coordinator base URL (env COSIGN_SERVER)")
	cmd.PersistentFlags().StringVarP(&g.output, "output", "o", "json", "Output format (json, yaml, table)")
	cmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "Per-request timeout")

	cmd.AddCommand(orgCmd(g))
	cmd.AddCommand(txCmd(g))
	cmd.AddCommand(watchCmd(g))
	return cmd
}
