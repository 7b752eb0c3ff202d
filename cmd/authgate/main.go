package main

import (
	"log"

	"github.com/kestrel-sec/authgate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatal(err)
	}
}
