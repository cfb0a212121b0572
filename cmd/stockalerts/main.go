// Command stockalerts evaluates stock price moves and target alerts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"

	"stockalerts/internal/cli"
	"stockalerts/internal/logging"
)

func main() {
	logger := logging.NewLogger()

	if err := cli.NewRootCmd(logger).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
