package main

import (
	"context"
	"os"
)

func main() {
	// Signal handling lives with the long-running commands: the pipeline
	// runner treats an interrupt as "abandon this stage", not "exit".
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
