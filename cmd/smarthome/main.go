// Command smarthome runs the threshold coordinator and offers one-shot
// commands to check a signal, update a threshold and print the state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/logging"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/smarthome"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/utils"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "smarthome.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "smarthome",
	Short:         "Smart home threshold coordinator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		utils.GetValueFromEnvironmentVariable("SMARTHOME_CONFIG", defaultConfigPath), "configuration file")
	rootCmd.AddCommand(runCmd, checkCmd, setThresholdCmd, statusCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfiguration() (*entities.SmartHomeConfig, *logging.Logrus, error) {
	conf, err := utils.LoadConfiguration(configPath)
	if err != nil {
		return nil, nil, err
	}
	return conf, logging.NewLogrus(conf.Log.Level, conf.Log.Format, os.Stderr), nil
}

func openSmartHome(ctx context.Context, opts ...smarthome.Option) (*entities.SmartHomeConfig, *smarthome.SmartHome, error) {
	conf, logger, err := loadConfiguration()
	if err != nil {
		return nil, nil, err
	}
	home, err := smarthome.New(ctx, conf, append([]smarthome.Option{smarthome.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return conf, home, nil
}
