package main

import (
	"log/slog"

	"github.com/BioHazard786/warpcall/cmd"
	"github.com/BioHazard786/warpcall/internal/logging"
)

func main() {
	// The relay raises this to info in its own command.
	logging.Init(slog.LevelError)
	cmd.Execute()
}
