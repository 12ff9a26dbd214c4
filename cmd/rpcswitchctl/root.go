package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	switchAddr  string
	authMethod  string
	who         string
	token       string
	dialTimeout time.Duration
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "rpcswitchctl",
	Short: "Operator CLI for the RPC switch",
	Long: `rpcswitchctl dials a running rpcswitchd as an authenticated client
and calls its rpcswitch.* introspection methods, rendering the results as
a table (or JSON with --json).`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&switchAddr, "addr", "127.0.0.1:7654", "switch address to dial")
	rootCmd.PersistentFlags().StringVar(&authMethod, "auth-method", "password", "auth method name passed to hello")
	rootCmd.PersistentFlags().StringVar(&who, "who", os.Getenv("USER"), "principal to authenticate as")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("RPCSWITCH_TOKEN"), "auth token")
	rootCmd.PersistentFlags().DurationVar(&dialTimeout, "timeout", 5*time.Second, "dial timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON instead of a table")

	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(methodsCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func connect() (*wireClient, error) {
	return dialAndHello(switchAddr, authMethod, who, token, dialTimeout)
}
