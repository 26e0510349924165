package main

import (
	"fmt"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var checkReading int64

var checkCmd = &cobra.Command{
	Use:   "check <temperature|lightIntensity|securityAlert>",
	Short: "Run a single threshold check",
	Long: `Reads the configured feed for the signal once and, when the reading
reaches the threshold, notifies every configured sink and updates the satellite.
With the static feed, --reading replaces the configured value.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Int64Var(&checkReading, "reading", 0, "reading to check against (static feed only)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	signal, err := entities.ParseSignal(args[0])
	if err != nil {
		return err
	}
	_, home, err := openSmartHome(cmd.Context())
	if err != nil {
		return err
	}
	defer home.Close()

	if cmd.Flags().Changed("reading") {
		if home.Feed() == nil {
			return errors.New("--reading requires the static feed")
		}
		home.Feed().Set(signal, checkReading)
	}

	result, err := home.Coordinator.Check(cmd.Context(), signal)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !result.Crossed {
		fmt.Fprintf(out, "%s: reading %d below threshold %d\n", signal, result.Reading.Value, result.Threshold)
		return nil
	}
	fmt.Fprintf(out, "%s: reading %d reached threshold %d, emitted %s (%s)\n",
		signal, result.Reading.Value, result.Threshold, result.Event.Name, result.Event.ID)
	return nil
}
