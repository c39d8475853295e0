package main

import (
	"os"

	"horse.fit/nycpedia/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
