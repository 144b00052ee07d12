package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dpshade/prompt-library/internal/cli"
)

var version = "0.1.0"

func main() {
	app := cli.NewApp(version)
	if err := app.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
