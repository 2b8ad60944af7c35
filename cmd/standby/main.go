package main

import (
	"log"

	"github.com/MrSnakeDoc/standby/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ standby supervisor failed: %v", err)
	}
}
