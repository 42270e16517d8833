package main

import (
	"log"
	"os"

	"flashcard-progress/internal/cli"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
