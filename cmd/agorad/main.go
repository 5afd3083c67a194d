package main

import (
	"fmt"
	"os"

	"agora/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "agorad:", err)
		os.Exit(1)
	}
}
