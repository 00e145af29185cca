// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/codegraph/internal/errors"
	"github.com/kraklabs/codegraph/internal/output"
	"github.com/kraklabs/codegraph/internal/ui"
)

// runQuery executes the 'query' CLI command: it dispatches a single named
// tool call against the graph through the same execute(name, input)
// entry point the agent/MCP layer uses in process. The CLI form exists
// for scripting and debugging the same contract interactively.
func runQuery(args []string, projectRoot string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	inputFlag := fs.String("input", "{}", "JSON input for the tool call")
	listFlag := fs.Bool("list", false, "List the available tool names and schemas instead of calling one")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codegraph query <tool-name> [--input '{"...json..."}']
       codegraph query --list

Description:
  Invoke one of the fixed catalog of graph tools (semantic_code_search,
  get_transitive_dependencies, get_reverse_dependencies, trace_call_chain,
  detect_circular_dependencies, calculate_coupling_metrics, get_hub_nodes,
  find_complexity_hotspots) and print its {output}|{error} envelope.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a, err := openApp(projectRoot)
	if err != nil {
		fatalError(err, globals.JSON)
	}
	defer a.close()

	if *listFlag {
		printCatalog(a, globals)
		return
	}

	rest := fs.Args()
	if len(rest) != 1 {
		errors.FatalError(errors.NewInputError(
			"A tool name is required",
			"codegraph query expects exactly one positional argument",
			"Run 'codegraph query --list' to see available tool names",
		), globals.JSON)
	}
	name := rest[0]

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(*inputFlag), &raw); err != nil {
		errors.FatalError(errors.NewInputError(
			"Invalid --input JSON",
			err.Error(),
			"Pass a valid JSON object, e.g. --input '{\"query\":\"parse config\"}'",
		), globals.JSON)
	}

	result := a.tools.Execute(context.Background(), name, raw)

	if globals.JSON {
		_ = output.JSON(result)
		return
	}
	if result.Err != nil {
		ui.Error(fmt.Sprintf("%s: %s", result.Err.Code, result.Err.Message))
		os.Exit(1)
	}
	fmt.Println(string(result.Output))
}

func printCatalog(a *app, globals GlobalFlags) {
	catalog := a.tools.Catalog()
	if globals.JSON {
		_ = output.JSON(catalog)
		return
	}
	ui.Header("Available tools")
	for _, t := range catalog {
		fmt.Printf("  %-32s %s\n", t.Name, t.Description)
	}
}
