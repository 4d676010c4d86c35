package main

import (
	"context"
	"fmt"
	"os"

	"github.com/diego-gutierrez10/swipephoto-sub001/cmd/sessionctl/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
