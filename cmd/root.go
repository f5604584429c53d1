package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/warpcall/internal/version"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warpcall",
	Short: "Peer-to-peer audio/video calls over WebRTC with a tiny signaling relay",
	Long: `WarpCall connects participants in a room directly with WebRTC. The relay only
forwards session descriptions and network candidates between members of a room;
media flows peer to peer.

Run "warpcall serve" to start a relay, then "warpcall new" or "warpcall join" on
each participant's machine.`,
}

// Execute runs the command tree until it finishes or the process is
// interrupted. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, rootCmd, fang.WithVersion(version.Version)); err != nil {
		stop()
		os.Exit(1)
	}
}
