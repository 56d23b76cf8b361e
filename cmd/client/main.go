package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/lobby/internal/adapters/ws"
	"github.com/dkeye/lobby/internal/client"
	"github.com/dkeye/lobby/internal/config"
	"github.com/dkeye/lobby/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags := config.ClientFlags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("invalid arguments")
	}
	cfg, err := config.LoadClient(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	c := client.New(client.Config{
		Who:               domain.MemberName(cfg.Who),
		Endpoint:          cfg.Endpoint,
		Join:              cfg.Join,
		DiscoveryTimeout:  cfg.DiscoveryTimeout,
		DiscoveryAttempts: cfg.DiscoveryAttempts,
		RetryDelay:        cfg.RetryDelay,
	}, ws.NewClientTransport(cfg.SendBuffer))
	if err := c.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start client")
	}

	var public, private atomic.Int64
	go printInbox(ctx, c.Public, "public", &public)
	go printInbox(ctx, c.Private, "private", &private)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	log.Info().Msg("Type messages, Ctrl-C or EOF to quit")
loop:
	for {
		fmt.Printf("%s > ", cfg.Who)
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			var room domain.RoomName
			if rooms := c.Rooms(); len(rooms) > 0 {
				room = rooms[0]
			}
			if err := c.Say(room, line); err != nil {
				log.Warn().Err(err).Msg("message not sent")
			}
		}
	}

	if err := c.Say("", "/QUIT"); err != nil {
		log.Warn().Err(err).Msg("quit not sent")
	}
	log.Info().Int64("public", public.Load()).Int64("private", private.Load()).Msg("messages received")
	c.Stop()
}

func printInbox(ctx context.Context, q *client.Inbox, kind string, received *atomic.Int64) {
	for {
		e, err := q.Get(ctx)
		if err != nil {
			return
		}
		received.Add(1)
		fmt.Printf("\n[%s %s] %s: %s\n", e.Received.Format("15:04:05"), kind, label(e), e.Fields["message"])
	}
}

func label(e client.Entry) string {
	who := e.Fields["who"]
	if who == "" {
		who = "*"
	}
	if e.Topic == "" {
		return who
	}
	return e.Topic + " " + who
}
