package main

import (
	"fmt"
	"os"

	"github.com/BearBump/ShipBox/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shipctl:", err)
		os.Exit(1)
	}
}
