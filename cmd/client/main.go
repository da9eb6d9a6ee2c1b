// The client command connects to a chat server as <loginID>. Lines typed at the
// console are sent as chat; #quit, #logoff, #login, #sethost, #setport,
// #gethost and #getport are handled locally.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dcrodman/chat/internal/client"
	"github.com/dcrodman/chat/internal/core"
	"github.com/dcrodman/chat/internal/core/console"
)

var configFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:          "client <loginID> [host] [port]",
		Short:        "Chat client",
		Args:         cobra.RangeArgs(1, 3),
		RunE:         clientCommand,
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "./", "Path to the directory containing the config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func clientCommand(cmd *cobra.Command, args []string) error {
	v := core.NewViper()
	config, err := core.LoadConfig(v, configFlag)
	if err != nil {
		return err
	}

	if len(args) > 1 {
		config.Client.Host = args[1]
	}
	if len(args) > 2 {
		port, err := core.ParsePort(args[2])
		if err != nil {
			port = core.DefaultPort
		}
		config.Client.Port = port
	}

	logger, err := core.NewLogger(config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := client.New(ctx, args[0], config, logger, console.NewWriter(os.Stdout))
	if err != nil {
		logger.Error(err)
		return err
	}

	go func() {
		err := console.ReadLines(ctx, os.Stdin, session.OnUserInput)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("error reading console input: %v", err)
		}
	}()

	select {
	case <-session.Done():
	case <-ctx.Done():
		session.Quit()
	}
	return nil
}
