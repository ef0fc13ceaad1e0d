package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sgrimee/fitctrl/internal/addrcache"
	"github.com/sgrimee/fitctrl/internal/config"
	"github.com/sgrimee/fitctrl/internal/gatt"
	"github.com/sgrimee/fitctrl/internal/treadmill"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// TransportFactory builds the BLE transport for a session.
// Tests substitute fakes here.
var TransportFactory = func(logger *logrus.Logger) treadmill.Transport {
	return treadmill.NewBLETransport(gatt.NewTransport(logger))
}

// rootCmd represents the base command; without action flags it starts the REPL
var rootCmd = &cobra.Command{
	Use:   "fitctrl",
	Short: "FTMS fitness equipment control",
	Long: `Control FTMS-compatible treadmills over Bluetooth Low Energy.

Without flags an interactive REPL starts. Action flags run a single
command and exit:

  fitctrl                  # interactive REPL
  fitctrl --start          # start treadmill (auto-connects)
  fitctrl --resume         # resume paused treadmill
  fitctrl --pause          # pause treadmill
  fitctrl --status         # show device status (auto-connects)
  fitctrl --stop           # stop treadmill (pauses if running)
  fitctrl --clear-cache    # clear cached device address`,
	Version: formatVersion(version),
	RunE:    run,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Failure already shown to the user - just set the exit code
		if errors.Is(err, ErrOperationFailed) {
			os.Exit(1)
		}
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nInterrupted")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix and usage dumps - main() prints clean errors
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	flags := rootCmd.Flags()
	flags.Bool("start", false, "Start/resume treadmill")
	flags.Bool("resume", false, "Resume paused treadmill (alias for --start)")
	flags.Bool("pause", false, "Pause treadmill")
	flags.Bool("stop", false, "Stop treadmill")
	flags.Bool("status", false, "Show device status")
	flags.Bool("clear-cache", false, "Clear cached device address")

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}

// selectedAction maps action flags to the single command to run. start and
// resume collapse into one action, so combining those two is not a conflict.
func selectedAction(cmd *cobra.Command) (string, error) {
	var actions []string
	start, _ := cmd.Flags().GetBool("start")
	resume, _ := cmd.Flags().GetBool("resume")
	if start || resume {
		actions = append(actions, "start")
	}
	for _, name := range []string{"pause", "stop", "status", "clear-cache"} {
		if on, _ := cmd.Flags().GetBool(name); on {
			actions = append(actions, name)
		}
	}

	switch len(actions) {
	case 0:
		return "", nil
	case 1:
		return actions[0], nil
	default:
		return "", errFlagConflict
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}
	action, err := selectedAction(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	display := NewDisplay(cmd.OutOrStdout())
	ctrl := treadmill.NewController(cfg, TransportFactory(logger), addrcache.New(logger), logger)

	if action == "" {
		return NewREPL(cfg, logger, ctrl, display).Run(ctx)
	}
	return runOneShot(ctx, action, ctrl, display, time.Second)
}
