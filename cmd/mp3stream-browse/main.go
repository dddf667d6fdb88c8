// ABOUTME: Lists mp3stream servers advertised on the local network
// ABOUTME: One-shot mDNS browse printing name, address and TXT records
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Resonate-Protocol/mp3stream/internal/discovery"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "mp3stream-browse",
		Short: "Lists mp3stream servers found via mDNS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			mgr := discovery.NewManager(discovery.Config{Logger: zap.NewNop()})
			defer mgr.Stop()

			servers, err := mgr.Browse(timeout)
			if err != nil {
				return err
			}
			if len(servers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No servers found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tADDRESS\tINFO")
			for _, s := range servers {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Addr(), strings.Join(s.Info, " "))
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "How long to wait for answers")
	return cmd
}
