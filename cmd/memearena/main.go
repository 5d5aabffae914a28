package main

import (
	"os"

	corecmd "github.com/m3rciful/memearena/core/cmd"
	"github.com/m3rciful/memearena/internal/app"
	"github.com/m3rciful/memearena/internal/auth"
)

func main() {
	root := corecmd.NewRootCommand(corecmd.Options{
		Use:          "memearena",
		Short:        "Meme generation chat bot with weekly contests",
		Serve:        app.Serve,
		Migrate:      app.Migrate,
		HashPassword: auth.Hash,
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
