// Command story is the offline-first Story App client.
package main

import (
	"context"
	"os"

	"github.com/roach88/storysync/internal/cli"
)

func main() {
	os.Exit(cli.Main(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
