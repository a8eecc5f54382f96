package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/pflag"

	"github.com/Tyrowin/channelchat/internal/client"
	"github.com/Tyrowin/channelchat/internal/protocol"
)

const requestTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	flagSet := pflag.NewFlagSet("channelchat-client", pflag.ContinueOnError)
	host := flagSet.String("host", "localhost", "server host")
	port := flagSet.IntP("port", "p", 8080, "server port")
	name := flagSet.StringP("name", "n", "", "user name (required)")
	password := flagSet.String("password", "", "password; the account is created on first login")
	channel := flagSet.StringP("channel", "c", "main", "channel to join")
	logLevel := flagSet.String("log-level", "WARN", "log level (DEBUG, INFO, WARN, ERROR)")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *name == "" {
		return errors.New("--name is required")
	}

	log := logs.GetLoggerFromString(strings.ToUpper(*logLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(log)
	connectCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	err := c.Connect(connectCtx, *host, *port, *name, *password)
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	c.OnMessage(func(m protocol.MessageRecord) {
		printMessage(out, m)
	})

	current := *channel
	if err := joinAndShow(ctx, c, out, current); err != nil {
		return err
	}

	fmt.Fprintf(out, "Connected as %s. Commands: /join <channel>, /channels, /quit\n", *name)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			next, quit, err := handleLine(ctx, c, out, current, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			current = next
		}
	}
}

// handleLine runs one line of input and returns the channel to post to next.
func handleLine(ctx context.Context, c *client.Client, out io.Writer, current, line string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	switch {
	case line == "":
		return current, false, nil
	case line == "/quit" || line == "/exit":
		return current, true, nil
	case line == "/channels":
		names, err := c.Channels(ctx)
		if err != nil {
			return current, false, err
		}
		fmt.Fprintf(out, "channels: %s\n", strings.Join(names, ", "))
		return current, false, nil
	case strings.HasPrefix(line, "/join "):
		next := strings.TrimSpace(strings.TrimPrefix(line, "/join "))
		if err := joinAndShow(ctx, c, out, next); err != nil {
			return current, false, err
		}
		return next, false, nil
	default:
		_, err := c.Send(ctx, current, line)
		return current, false, err
	}
}

func joinAndShow(ctx context.Context, c *client.Client, out io.Writer, channel string) error {
	if err := c.Join(ctx, channel); err != nil {
		return fmt.Errorf("join %s: %w", channel, err)
	}
	history, err := c.GetMessages(ctx, channel)
	if err != nil {
		return fmt.Errorf("history of %s: %w", channel, err)
	}
	fmt.Fprintf(out, "--- %s (%d messages) ---\n", channel, len(history))
	for _, m := range history {
		printMessage(out, m)
	}
	return nil
}

func printMessage(out io.Writer, m protocol.MessageRecord) {
	fmt.Fprintf(out, "[%s] %s @ %s: %s\n", m.Time().Local().Format("15:04:05"), m.From, m.To, m.Content)
}
