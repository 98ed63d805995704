package main

import (
	"os"

	"github.com/kirillkom/knowledge-pipeline/internal/adapters/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
