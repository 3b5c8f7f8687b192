package main

import (
	"os"

	"github.com/normanking/voicelink/cmd/voicelinkctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
