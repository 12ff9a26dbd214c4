package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rpcswitchd",
	Short: "JSON-RPC switch daemon",
	Long: `rpcswitchd is a long-running broker that accepts JSON-RPC 2.0
connections from clients and workers, authenticates each peer, authorizes
every call against an access-control policy, and relays request/response
traffic between a client and the worker selected to handle its call.

The switch never executes application methods itself; it is purely the
dispatch, ACL, and multiplexing layer in front of independently running
worker processes.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
