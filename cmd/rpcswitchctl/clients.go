package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rpcswitch/rpc-switch/pkg/cliout"
)

type clientInfo struct {
	From     string `json:"from"`
	Who      string `json:"who"`
	State    string `json:"state"`
	WorkerID uint64 `json:"worker_id"`
}

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List connected clients and workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()

		var clients []clientInfo
		if err := c.call("rpcswitch.get_clients", nil, &clients); err != nil {
			return fmt.Errorf("rpcswitch.get_clients: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(clients)
		}

		t := cliout.NewTable(os.Stdout)
		t.AppendHeader(table.Row{"FROM", "WHO", "STATE", "WORKER ID"})
		for _, cl := range clients {
			workerID := ""
			if cl.WorkerID != 0 {
				workerID = fmt.Sprint(cl.WorkerID)
			}
			t.AppendRow(table.Row{cl.From, cl.Who, cl.State, workerID})
		}
		t.Render()
		return nil
	},
}
