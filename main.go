package main

import (
	"os"

	"github.com/firefly-engineering/browserbox/cmd"
	"github.com/firefly-engineering/browserbox/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
