package main

import (
	"log"

	"github.com/m3rciful/autobot/core/cmd"
)

func main() {
	if err := cmd.Run(cmd.Options{DefaultConfigPath: "config.yaml"}); err != nil {
		log.Fatalf("autobot: %v", err)
	}
}
