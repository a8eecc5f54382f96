package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/channelchat/internal/auth"
	"github.com/Tyrowin/channelchat/internal/chat"
	"github.com/Tyrowin/channelchat/internal/clock"
	"github.com/Tyrowin/channelchat/internal/identity"
	"github.com/Tyrowin/channelchat/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, wires the chat service to the WebSocket server
// and serves until SIGINT or SIGTERM.
func run(args []string) error {
	config, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}

	flagSet := pflag.NewFlagSet("channelchat-server", pflag.ContinueOnError)
	port := flagSet.IntP("port", "p", 0, "TCP port to listen on (overrides SERVER_PORT)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.Changed("port") {
		config.Port = fmt.Sprintf(":%d", *port)
	}

	log := logs.GetLoggerFromString(config.LogLevel)
	log.Info("starting channel chat server", "port", config.Port, "origins", config.Origins())

	ids := identity.NewUUIDGenerator()
	hub := server.NewHub(log)
	users := chat.NewUserDirectory(auth.NewHasher(auth.DefaultParams), ids)
	service := chat.NewService(log, chat.NewChannelStore(), users, ids, clock.System{}, hub)
	srv := server.New(*config, log, hub, service, ids)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("server stopped")
	return nil
}
