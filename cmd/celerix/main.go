package main

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/celerix-dev/celerix-sensors/pkg/sdk"
)

var addr string

var rootCmd = &cobra.Command{
	Use:   "celerix",
	Short: "Celerix CLI - interface for the sensor allocation daemon",
	Long: `Celerix CLI - interface for the sensor allocation daemon

Environment Variables:
  CELERIX_STORE_ADDR    Address of the daemon (default: localhost:7001)
  CELERIX_DISABLE_TLS   Set to true to disable TLS`,
	SilenceUsage: true,
}

func main() {
	def := os.Getenv("CELERIX_STORE_ADDR")
	if def == "" {
		def = "localhost:7001"
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", def, "address of the sensor daemon")
	rootCmd.AddCommand(
		withClient("ping", "Check the daemon is reachable", cobra.NoArgs, func(c *sdk.Client, _ []string) (any, error) {
			if err := c.Ping(); err != nil {
				return nil, err
			}
			return "PONG", nil
		}),
		withClient("workouts", "List workouts", cobra.NoArgs, func(c *sdk.Client, _ []string) (any, error) {
			return c.ListWorkouts()
		}),
		withClient("workout <workoutID>", "Show a workout and its allocations", cobra.ExactArgs(1), func(c *sdk.Client, args []string) (any, error) {
			return c.GetWorkout(args[0])
		}),
		withClient("sensors", "List sensors", cobra.NoArgs, func(c *sdk.Client, _ []string) (any, error) {
			return c.ListSensors()
		}),
		withClient("allocate <workoutID> <userID>...", "Allocate sensors to the given participants", cobra.MinimumNArgs(2), func(c *sdk.Client, args []string) (any, error) {
			return c.AllocateSensors(args[0], args[1:])
		}),
		withClient("reassign <workoutID> <userID>", "Give a participant a different sensor", cobra.ExactArgs(2), func(c *sdk.Client, args []string) (any, error) {
			w, sensorID, err := c.ReassignSensor(args[0], args[1])
			if err != nil {
				return nil, err
			}
			return sdk.ReassignResult{Workout: w, SensorID: sensorID}, nil
		}),
		withClient("add <workoutID> <userID>", "Admit a participant to a workout", cobra.ExactArgs(2), func(c *sdk.Client, args []string) (any, error) {
			return c.AddParticipant(args[0], args[1])
		}),
		withClient("disable <sensorID>", "Mark a sensor as not allocatable", cobra.ExactArgs(1), func(c *sdk.Client, args []string) (any, error) {
			return c.DisableSensor(args[0])
		}),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withClient builds a subcommand that connects to the daemon and prints
// the result of fn as JSON.
func withClient(use, short string, args cobra.PositionalArgs, fn func(*sdk.Client, []string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sdk.Connect(addr)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", addr, err)
			}
			defer client.Close()

			out, err := fn(client, args)
			if err != nil {
				log.Debugf("%s failed with code %s", cmd.Name(), sdk.ErrorCode(err))
				return err
			}
			printJSON(out)
			return nil
		},
	}
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}
