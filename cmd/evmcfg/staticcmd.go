package main

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/bnb-chain/evmcfg/core/cfg"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	codeFlag = &cli.StringFlag{
		Name:  "code",
		Usage: "Contract bytecode as hex",
	}
	codeFileFlag = &cli.StringFlag{
		Name:  "code.file",
		Usage: "File holding contract bytecode as hex",
	}
	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "Contract address",
	}
	blockFlag = &cli.Uint64Flag{
		Name:  "block",
		Usage: "Block number to read code at (default: latest)",
	}
	disasmFlag = &cli.BoolFlag{
		Name:  "disasm",
		Usage: "Print the disassembly instead of the graph",
	}

	staticCommand = &cli.Command{
		Action:    staticCFG,
		Name:      "static",
		Usage:     "Build the static CFG of a contract",
		Flags:     []cli.Flag{codeFlag, codeFileFlag, addressFlag, blockFlag, disasmFlag},
		Description: `
The static command decodes bytecode, splits it into basic blocks and connects
them through fallthroughs and jumps to constant destinations. Bytecode comes
from --code, --code.file or, with --address, from the node at --rpc.`,
	}
)

func staticCFG(ctx *cli.Context) error {
	e, err := newEnv(ctx, ctx.IsSet(addressFlag.Name))
	if err != nil {
		return err
	}
	defer e.close()

	code, err := staticCode(ctx, e)
	if err != nil {
		return err
	}

	if ctx.Bool(disasmFlag.Name) {
		instrs, err := cfg.Decode(code)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(ctx.App.Writer, cfg.Disassemble(instrs))
		return err
	}
	static, err := e.analyzer.Static(code)
	if err != nil {
		return err
	}
	for _, u := range static.Unresolved() {
		log.Warn("Unresolved jump", "err", u)
	}
	log.Info("Built static CFG", "hash", static.CodeHash(), "blocks", static.NumBlocks(), "edges", static.NumEdges(),
		"dynamic", len(static.DynamicJumps()))
	return e.write(ctx, ctx.String(outFlag.Name), static.CodeHash().Hex(), static)
}

func staticCode(ctx *cli.Context, e *env) ([]byte, error) {
	switch {
	case ctx.IsSet(codeFlag.Name):
		return decodeHex(ctx.String(codeFlag.Name))
	case ctx.IsSet(codeFileFlag.Name):
		return readHexFile(ctx.String(codeFileFlag.Name))
	case ctx.IsSet(addressFlag.Name):
		addr, err := parseAddress(ctx.String(addressFlag.Name))
		if err != nil {
			return nil, err
		}
		var block *big.Int
		if ctx.IsSet(blockFlag.Name) {
			block = new(big.Int).SetUint64(ctx.Uint64(blockFlag.Name))
		}
		code, err := e.provider.Code(ctx.Context, addr, block)
		if err != nil {
			return nil, err
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("no code at %s", addr.Hex())
		}
		return code, nil
	}
	return nil, errors.New("one of --code, --code.file or --address is required")
}
