package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rpcswitch/rpc-switch/pkg/cliout"
)

type workerInfo struct {
	Method      string `json:"method"`
	WorkerID    uint64 `json:"worker_id"`
	FilterKey   string `json:"filter_key,omitempty"`
	FilterValue string `json:"filter_value,omitempty"`
}

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List announced workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()

		var workers []workerInfo
		if err := c.call("rpcswitch.get_workers", nil, &workers); err != nil {
			return fmt.Errorf("rpcswitch.get_workers: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(workers)
		}

		t := cliout.NewTable(os.Stdout)
		t.AppendHeader(table.Row{"METHOD", "WORKER ID", "FILTER KEY", "FILTER VALUE"})
		for _, w := range workers {
			t.AppendRow(table.Row{w.Method, w.WorkerID, w.FilterKey, w.FilterValue})
		}
		t.Render()
		return nil
	},
}
