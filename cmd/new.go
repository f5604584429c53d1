package cmd

import (
	"fmt"

	"github.com/BioHazard786/warpcall/internal/room"
	"github.com/BioHazard786/warpcall/internal/ui"
	"github.com/spf13/cobra"
)

var newFlags clientFlags

var newCmd = &cobra.Command{
	Use:     "new",
	Aliases: []string{"n"},
	Short:   "Start a call in a fresh room",
	Long: `Pick a memorable room id, print how others can join it and join it yourself.

Examples:
  warpcall new
  warpcall new --server relay.example.com --no-video`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context(), cmd.ErrOrStderr(), &newFlags)
		if err != nil {
			return err
		}

		roomID := room.GenerateID()
		fmt.Println(ui.RoomInfoView(roomID, cfg.GetRoomLink(roomID)))
		fmt.Println()

		return runCall(cmd.Context(), cfg, roomID, &newFlags)
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newFlags.register(newCmd)
}
