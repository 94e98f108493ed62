// Package main provides the pacbuild command-line application.
package main

import (
	"log"
	"os"

	"github.com/pacbuild-project/pacbuild/internal/cli"
)

func main() {
	app := cli.NewApp()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
