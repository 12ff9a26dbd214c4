package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpcswitch/rpc-switch/pkg/state"
)

var reloadPidfile string

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Trigger a policy reload on a running daemon",
	Long: `Sends SIGHUP to a running rpcswitchd process, found via its
pidfile, triggering the same reload a --watch-detected policy change
would.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := state.Load(reloadPidfile)
		if err != nil {
			return fmt.Errorf("reading pidfile %s: %w", reloadPidfile, err)
		}
		if !state.IsRunning(st) {
			return fmt.Errorf("no running daemon found at pid %d", st.PID)
		}
		if err := state.SignalReload(st); err != nil {
			return fmt.Errorf("signaling reload: %w", err)
		}
		fmt.Printf("sent reload signal to rpcswitchd (pid %d)\n", st.PID)
		return nil
	},
}

func init() {
	reloadCmd.Flags().StringVar(&reloadPidfile, "pidfile", "", "pidfile written by `rpcswitchd serve --pidfile`")
	reloadCmd.MarkFlagRequired("pidfile")
}
