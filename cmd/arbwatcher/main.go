package main

import (
	"spot-perps-arb/internal/cli"
)

func main() {
	cli.Execute()
}
