package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BioHazard786/warpcall/internal/call"
	"github.com/BioHazard786/warpcall/internal/config"
	"github.com/BioHazard786/warpcall/internal/discovery"
	"github.com/BioHazard786/warpcall/internal/media"
	"github.com/BioHazard786/warpcall/internal/negotiation"
	"github.com/BioHazard786/warpcall/internal/peer"
	"github.com/BioHazard786/warpcall/internal/room"
	"github.com/BioHazard786/warpcall/internal/signaling"
	"github.com/BioHazard786/warpcall/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
)

const (
	discoverTimeout = 5 * time.Second
	leaveTimeout    = 3 * time.Second
)

// clientFlags are shared by join and new.
type clientFlags struct {
	config.Options
	Discover bool
	NoVideo  bool
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Server, "server", "S", "", "Relay address (host or ws/wss/http/https URL)")
	cmd.Flags().StringVarP(&f.STUNServer, "stun", "s", "", "Custom STUN server")
	cmd.Flags().StringVarP(&f.TURNServer, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVar(&f.TURNUser, "turn-user", "", "TURN username")
	cmd.Flags().StringVar(&f.TURNPass, "turn-pass", "", "TURN password")
	cmd.Flags().BoolVarP(&f.ForceRelay, "relay", "r", false, "Force relay mode")
	cmd.Flags().StringVar(&f.Codec, "codec", "", "Signaling codec: json or msgpack")
	cmd.Flags().BoolVar(&f.Discover, "discover", false, "Find a relay on the local network")
	cmd.Flags().BoolVar(&f.NoVideo, "no-video", false, "Join with audio only")
}

var joinFlags clientFlags

var joinCmd = &cobra.Command{
	Use:     "join <room-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a call",
	Long: `Join a call room. Everyone already in the room connects to you directly.

Examples:
  warpcall join KITTEN-WAFFLE-STARDUST
  warpcall join https://relay.example.com/room/KITTEN-WAFFLE-STARDUST
  warpcall join kitten-waffle-stardust --server localhost:8080 --no-video`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd.Context(), cmd.ErrOrStderr(), &joinFlags)
		if err != nil {
			return err
		}
		return runCall(cmd.Context(), cfg, roomID, &joinFlags)
	},
}

// browse is replaced in tests.
var browse = discovery.Browse

// loadConfig resolves client configuration. With --discover and no explicit
// server, a relay found on the local network wins; when none answers the
// configured or default relay is used.
func loadConfig(ctx context.Context, w io.Writer, f *clientFlags) (*config.Config, error) {
	opts := f.Options
	if f.Discover && opts.Server != "" {
		ui.PrintWarning(w, "--server is set, skipping relay discovery")
	}
	if f.Discover && opts.Server == "" {
		stop := ui.RunConnectionSpinner(w, "Looking for a relay on the local network...")
		bctx, cancel := context.WithTimeout(ctx, discoverTimeout)
		u, err := browse(bctx)
		cancel()
		stop()

		switch {
		case err == nil:
			ui.PrintSuccess(w, "Found relay at "+u)
			opts.Server = u
		case errors.Is(err, discovery.ErrNoRelay):
			ui.PrintWarning(w, "No relay found on the local network, falling back to the configured relay")
		default:
			return nil, err
		}
	}

	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, errors.New("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

func runCall(ctx context.Context, cfg *config.Config, roomID string, f *clientFlags) error {
	codec, err := signaling.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}
	api, err := peer.NewAPI()
	if err != nil {
		return err
	}
	pcConf := peer.Configuration(cfg)

	c := call.New(call.Options{
		RoomID:      roomID,
		Source:      media.SilenceSource{},
		Constraints: media.Constraints{Audio: true, Video: !f.NoVideo},
		Dial: func(ctx context.Context) (call.Channel, error) {
			ch, err := signaling.Dial(ctx, cfg.WebSocketURL, codec)
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
		NewTransport: func(_ string, tracks []webrtc.TrackLocal) (negotiation.Transport, error) {
			t, err := peer.New(api, pcConf, tracks)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	})

	ui.PrintInfo(os.Stderr, fmt.Sprintf("Joining %s via %s", roomID, cfg.WebSocketURL))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	commands := make(chan call.Command, 8)
	program := tea.NewProgram(ui.NewCallModel(c.Snapshots(), commands))

	done := make(chan error, 1)
	go func() {
		err := c.Run(ctx, commands)
		program.Send(ui.CallEndedMsg{Err: err})
		done <- err
	}()

	if _, uiErr := program.Run(); uiErr != nil {
		cancel()
		<-done
		return fmt.Errorf("call view: %w", uiErr)
	}

	// The view has quit, either on its own leave or because the call ended.
	select {
	case err = <-done:
	case <-time.After(leaveTimeout):
		cancel()
		err = <-done
	}

	if summary := c.Summary(); summary.SelfID != "" {
		fmt.Println()
		ui.RenderCallSummary(os.Stdout, summary)
	}
	return err
}

// parseRoomInput accepts a bare room id or a room link of the form
// https://host/room/<id>.
func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("room ID cannot be empty")
	}

	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("parse room link: %w", err)
		}
		parts := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
		for i, part := range parts {
			if part == "room" && i+1 < len(parts) && parts[i+1] != "" {
				id, err := url.PathUnescape(parts[i+1])
				if err != nil {
					return "", fmt.Errorf("parse room link: %w", err)
				}
				return room.NormalizeID(id), nil
			}
		}
		return "", fmt.Errorf("could not extract room ID from URL: %s", input)
	}

	return room.NormalizeID(input), nil
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinFlags.register(joinCmd)
}
