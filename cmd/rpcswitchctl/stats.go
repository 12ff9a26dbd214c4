package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rpcswitch/rpc-switch/pkg/cliout"
)

type statsResult struct {
	Chunks      int64            `json:"chunks"`
	Clients     int              `json:"clients"`
	Connections int              `json:"connections"`
	Workers     int              `json:"workers"`
	Methods     map[string]int64 `json:"methods"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show broker-wide call counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()

		var stats statsResult
		if err := c.call("rpcswitch.get_stats", nil, &stats); err != nil {
			return fmt.Errorf("rpcswitch.get_stats: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}

		fmt.Printf("chunks:      %d\n", stats.Chunks)
		fmt.Printf("connections: %d\n", stats.Connections)
		fmt.Printf("workers:     %d\n", stats.Workers)
		fmt.Println()

		names := make([]string, 0, len(stats.Methods))
		for name := range stats.Methods {
			names = append(names, name)
		}
		sort.Strings(names)

		t := cliout.NewTable(os.Stdout)
		t.AppendHeader(table.Row{"METHOD", "CALLS"})
		for _, name := range names {
			t.AppendRow(table.Row{name, stats.Methods[name]})
		}
		t.Render()
		return nil
	},
}
