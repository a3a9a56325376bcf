// Package main is the entry point for the cswallet CLI.
package main

import (
	"os"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
