package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print thresholds, satellite values and recent crossings",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, _ []string) error {
	_, home, err := openSmartHome(cmd.Context())
	if err != nil {
		return err
	}
	defer home.Close()

	status, err := home.Status(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "owner\t%s\n", status.Owner)
	fmt.Fprintf(w, "temperature threshold\t%d\n", status.Thresholds.Temperature)
	fmt.Fprintf(w, "light intensity threshold\t%d\n", status.Thresholds.LightIntensity)
	fmt.Fprintf(w, "security alert threshold\t%d\n", status.Thresholds.SecurityAlert)
	fmt.Fprintf(w, "temperature control\t%d\n", status.Temperature)
	fmt.Fprintf(w, "light control\t%d\n", status.LightIntensity)
	fmt.Fprintf(w, "security alert status\t%t\n", status.SecurityAlert)
	for _, c := range status.Crossings {
		fmt.Fprintf(w, "%s\t%s reading=%d threshold=%d\n", c.Timestamp.Format(time.RFC3339), c.Name, c.Value, c.Threshold)
	}
	return w.Flush()
}
