package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bnb-chain/evmcfg/core/annotate"
	"github.com/bnb-chain/evmcfg/core/trace"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

var (
	traceFileFlag = &cli.StringFlag{
		Name:     "trace",
		Usage:    "File holding a debug_traceTransaction struct-log result",
		Required: true,
	}
	rootFlag = &cli.StringFlag{
		Name:  "root",
		Usage: "Address the transaction called (omit for contract creation)",
	}
	depthFlag = &cli.IntFlag{
		Name:  "depth",
		Usage: "Only keep steps at this call depth (-1 = any)",
		Value: annotate.AnyDepth,
	}

	filterCommand = &cli.Command{
		Action: filterTrace,
		Name:   "filter",
		Usage:  "List the matched opcodes a contract executed in a saved trace",
		Flags:  []cli.Flag{traceFileFlag, rootFlag, addressFlag, depthFlag},
		Description: `
The filter command reads a struct-log trace from a file, attributes every step
to the contract whose code ran it and prints the steps of --address whose
opcode is in the --match set (by default the CALL family and SSTORE).`,
	}
)

func filterTrace(ctx *cli.Context) error {
	if !ctx.IsSet(addressFlag.Name) {
		return errors.New("--address is required")
	}
	addr, err := parseAddress(ctx.String(addressFlag.Name))
	if err != nil {
		return err
	}
	config, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	matcher, unknown := annotate.MatcherFromNames(config.Pipeline.Match)
	if len(unknown) > 0 {
		return fmt.Errorf("unknown opcodes: %v", unknown)
	}
	data, err := os.ReadFile(ctx.String(traceFileFlag.Name))
	if err != nil {
		return err
	}
	res, err := trace.DecodeStructLogs(data)
	if err != nil {
		return err
	}
	if ctx.IsSet(rootFlag.Name) {
		root, err := parseAddress(ctx.String(rootFlag.Name))
		if err != nil {
			return err
		}
		err = trace.Attribute(root, res.Steps)
	} else {
		err = trace.AttributeCreation(res.Steps)
	}
	if err != nil {
		return err
	}

	steps := annotate.FilterTrace(res.Steps, addr, ctx.Int(depthFlag.Name), matcher)
	table := tablewriter.NewWriter(ctx.App.Writer)
	table.SetHeader([]string{"Step", "PC", "Op", "Depth", "Storage", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	for _, st := range steps {
		table.Append([]string{
			fmt.Sprint(st.Index),
			fmt.Sprint(st.PC),
			st.Op.String(),
			fmt.Sprint(st.Depth),
			st.Storage.Hex(),
			stepDetail(st),
		})
	}
	table.SetFooter([]string{"", "", "", "", fmt.Sprintf("%d of %d steps", len(steps), len(res.Steps)), ""})
	table.Render()
	return nil
}

func stepDetail(st trace.Step) string {
	if to, ok := st.CallTarget(); ok {
		if v, ok := st.CallValue(); ok && !v.IsZero() {
			return fmt.Sprintf("to %s value %s", to.Hex(), v.Dec())
		}
		return "to " + to.Hex()
	}
	if slot, ok := st.StorageSlot(); ok {
		if v, ok := st.StoredValue(); ok {
			return fmt.Sprintf("slot %s = %s", slot.Hex(), v.Hex())
		}
		return "slot " + slot.Hex()
	}
	return ""
}

