package main

import (
	"context"
	"log"

	// Embed tzdata so organization time zones validate on hosts without a
	// zoneinfo directory.
	_ "time/tzdata"

	"github.com/dalemusser/waffle/app"

	"github.com/coverdesk/coverdesk/internal/app/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
