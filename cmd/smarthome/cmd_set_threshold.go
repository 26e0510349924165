package main

import (
	"fmt"
	"strconv"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var caller string

var setThresholdCmd = &cobra.Command{
	Use:   "set-threshold <temperature|lightIntensity|securityAlert> <value>",
	Short: "Update a threshold on behalf of the owner",
	Long: `Updates the threshold of a signal. The caller must be the configured owner.
Without a persistent store the change is lost when the command exits.`,
	Args: cobra.ExactArgs(2),
	RunE: runSetThreshold,
}

func init() {
	setThresholdCmd.Flags().StringVar(&caller, "caller", "", "identity performing the update (defaults to the owner)")
}

func runSetThreshold(cmd *cobra.Command, args []string) error {
	signal, err := entities.ParseSignal(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errors.Wrapf(err, "threshold %q", args[1])
	}
	conf, home, err := openSmartHome(cmd.Context())
	if err != nil {
		return err
	}
	defer home.Close()

	identity := entities.Identity(caller)
	if identity == "" {
		identity = conf.Owner
	}
	if err := home.Coordinator.SetThreshold(cmd.Context(), identity, signal, value); err != nil {
		return err
	}
	if conf.Store.Kind == entities.StoreNone {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: no store configured, the threshold is not persisted")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s threshold set to %d\n", signal, value)
	return nil
}
