package main

import (
	"log"

	reserved "reservenet/services/reserved"
)

func main() {
	if err := reserved.Main(); err != nil {
		log.Fatalf("reserved: %v", err)
	}
}
