package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/veliq/telecall/config"
	"github.com/veliq/telecall/internal/adapter/driven/media/devices"
	pionadapter "github.com/veliq/telecall/internal/adapter/driven/media/pion"
	wstransport "github.com/veliq/telecall/internal/adapter/driven/transport/ws"
	"github.com/veliq/telecall/internal/core/domain"
	"github.com/veliq/telecall/internal/core/service"
)

func main() {
	w := zerolog.ConsoleWriter{Out: os.Stdout}
	l := zerolog.New(w).With().Timestamp().Logger()

	var (
		id   = flag.String("id", "", "participant id")
		kind = flag.String("kind", string(domain.KindPatient), "participant kind: patient or doctor")
		name = flag.String("name", "", "display name")
	)
	flag.Parse()

	if *id == "" {
		l.Fatal().Msg("-id is required")
	}
	self := domain.Participant{
		ID:          domain.ParticipantID(*id),
		Kind:        domain.Kind(*kind),
		DisplayName: *name,
	}
	if !self.Kind.Valid() {
		l.Fatal().Str("kind", *kind).Msg("invalid kind")
	}

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport, err := wstransport.Dial(ctx, cfg.ServerURL)
	if err != nil {
		l.Fatal().Err(err).Str("url", cfg.ServerURL).Msg("Failed to reach signaling server")
	}
	defer transport.Close()

	source, err := devices.NewSource()
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to initialize media capture")
	}
	factory := pionadapter.NewFactory(source, cfg.STUNServers, pionadapter.WithAPI(source.API()))

	machine := service.NewMachine(self, transport, factory)

	go func() {
		for n := range machine.Notices() {
			fmt.Printf("* %s\n", n.Text)
		}
	}()

	go func() {
		if err := machine.Run(ctx); err != nil && ctx.Err() == nil {
			l.Error().Err(err).Msg("Signaling loop stopped")
		}
		cancel()
	}()

	l.Info().Str("id", *id).Msg("Connected; commands: call <id> [doctor|patient], accept, reject, end, mute, video, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "call":
			if len(fields) < 2 {
				fmt.Println("usage: call <id> [doctor|patient]")
				continue
			}
			target := domain.Participant{ID: domain.ParticipantID(fields[1]), Kind: domain.KindPractitioner}
			if len(fields) > 2 {
				target.Kind = domain.Kind(fields[2])
			}
			if err := machine.InitiateCall(ctx, target); err != nil {
				fmt.Printf("call failed: %v\n", err)
			}
		case "accept":
			if err := machine.AcceptCall(ctx); err != nil {
				fmt.Printf("accept failed: %v\n", err)
			}
		case "reject":
			if err := machine.RejectCall("declined"); err != nil {
				fmt.Printf("reject failed: %v\n", err)
			}
		case "end":
			machine.EndCall()
		case "mute":
			fmt.Printf("audio on: %v\n", machine.ToggleAudio())
		case "video":
			fmt.Printf("video on: %v\n", machine.ToggleVideo())
		case "quit":
			machine.EndCall()
			return
		default:
			fmt.Println("unknown command")
		}
	}
}
