package main

import (
	"os"

	"github.com/firefly-engineering/desklab/cmd"
	"github.com/firefly-engineering/desklab/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
