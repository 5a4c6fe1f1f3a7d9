package main

import (
	"log"

	"github.com/inboxtriage/engine/cli"
)

func main() {
	args := cli.ParseFlags()
	if err := cli.Run(args); err != nil {
		log.Fatalf("inboxtriage: %v", err)
	}
}
