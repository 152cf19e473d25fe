package main

import (
	"wallet-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
