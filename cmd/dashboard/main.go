package main

import (
	"log"
	"os"

	"netsim-sweep/internal/dashboard"
)

func main() {
	if err := dashboard.Render("build", os.Getenv("GREPTIMEDB_TABLE")); err != nil {
		log.Fatal(err)
	}
}
