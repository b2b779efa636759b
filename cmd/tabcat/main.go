package main

import (
	"os"

	tabcatapp "github.com/tabletools/tabcat/app"
)

func main() {
	app := *tabcatapp.App
	app.Reader = os.Stdin
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
