package main

import (
	"context"
	"os"

	"aliaskit/client/internal/cli"
)

// main 运行 aliaskit 命令行。
func main() {
	os.Exit(cli.Execute(context.Background()))
}
