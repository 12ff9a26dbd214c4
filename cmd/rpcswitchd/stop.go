package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpcswitch/rpc-switch/pkg/state"
)

var stopPidfile string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	Long:  "Sends SIGTERM to a running rpcswitchd process, found via its pidfile, and waits for a graceful shutdown before forcing it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := state.Load(stopPidfile)
		if err != nil {
			return fmt.Errorf("reading pidfile %s: %w", stopPidfile, err)
		}
		if !state.IsRunning(st) {
			fmt.Println("daemon is not running")
			return state.Delete(stopPidfile)
		}
		if err := state.KillDaemon(st); err != nil {
			return fmt.Errorf("stopping daemon: %w", err)
		}
		fmt.Printf("stopped rpcswitchd (pid %d)\n", st.PID)
		return nil
	},
}

func init() {
	stopCmd.Flags().StringVar(&stopPidfile, "pidfile", "", "pidfile written by `rpcswitchd serve --pidfile`")
	stopCmd.MarkFlagRequired("pidfile")
}
