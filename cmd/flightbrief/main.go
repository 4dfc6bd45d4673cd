package main

import (
	"os"

	"github.com/yegors/flightbrief/internal/cli"
)

// Version is injected at build time
var Version = "dev"

func main() {
	if err := cli.NewRootCmd(Version).Execute(); err != nil {
		os.Exit(1)
	}
}
