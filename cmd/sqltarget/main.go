package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/0x6d61/sqltarget/internal/cli"
	"github.com/0x6d61/sqltarget/internal/engine"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.Is(err, engine.ErrUserQuit) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
