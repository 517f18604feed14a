package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "journeys-api",
		Usage:                 "Author journeys, ingest events and resume waits over HTTP",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunAPICommand(),
			ImportCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
