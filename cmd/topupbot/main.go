package main

import (
	"log"

	"github.com/fanfansh/topupbot/core/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("topupbot: %v", err)
	}
}
