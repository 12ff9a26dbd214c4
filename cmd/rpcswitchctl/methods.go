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

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the policy's public methods and their backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect()
		if err != nil {
			return err
		}
		defer c.Close()

		var methods map[string]string
		if err := c.call("rpcswitch.get_methods", nil, &methods); err != nil {
			return fmt.Errorf("rpcswitch.get_methods: %w", err)
		}

		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(methods)
		}

		names := make([]string, 0, len(methods))
		for name := range methods {
			names = append(names, name)
		}
		sort.Strings(names)

		t := cliout.NewTable(os.Stdout)
		t.AppendHeader(table.Row{"METHOD", "BACKEND"})
		for _, name := range names {
			t.AppendRow(table.Row{name, methods[name]})
		}
		t.Render()
		return nil
	},
}
