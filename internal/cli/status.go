package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/pkg/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Check that the server is up and can reach its database",
		Annotations: map[string]string{annotationPublic: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := apiClient.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}
			if getOutputFormat() != "table" {
				if err := printOutput(status); err != nil {
					return err
				}
			} else {
				writeStatus(os.Stdout, status)
			}
			if !status.Ready {
				return fmt.Errorf("server is not ready")
			}
			return nil
		},
	}
}

func writeStatus(w io.Writer, status *client.ServerStatus) {
	ready := "yes"
	if !status.Ready {
		ready = "no"
	}
	fmt.Fprintf(w, "Live:     yes (%s)\n", status.Latency.Round(time.Millisecond))
	fmt.Fprintf(w, "Ready:    %s\n", ready)
	if status.Database != "" {
		fmt.Fprintf(w, "Database: %s\n", status.Database)
	}
	if status.Detail != "" {
		fmt.Fprintf(w, "Detail:   %s\n", status.Detail)
	}
}
