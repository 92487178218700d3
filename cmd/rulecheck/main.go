// Command rulecheck is the differential test harness for the rule transformation toolchain.
package main

import (
	"context"
	"os"

	"github.com/roach88/rulecheck/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
