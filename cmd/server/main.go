// The server command runs the chat server. Directives typed at the console
// (#quit, #stop, #close, #setport, #start, #getport, #seen) control it; any
// other line is broadcast to every client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dcrodman/chat/internal"
	"github.com/dcrodman/chat/internal/core"
)

var configFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "server [port]",
		Short: "Multi-client chat server",
		Args:  cobra.MaximumNArgs(1),
		RunE:  serverCommand,
	}
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "./", "Path to the directory containing the config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serverCommand(cmd *cobra.Command, args []string) error {
	v := core.NewViper()
	config, err := core.LoadConfig(v, configFlag)
	if err != nil {
		return err
	}

	// An unparseable port falls back to the default rather than failing.
	if len(args) > 0 {
		port, err := core.ParsePort(args[0])
		if err != nil {
			port = core.DefaultPort
		}
		config.Server.Port = port
	}

	// Bind the Controller to one top-level context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register a SIGTERM handler so that Ctrl-C will shut the server down gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	controller := &internal.Controller{
		Config:  config,
		Console: os.Stdin,
	}
	if err := controller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func exitHandler(cancelFn func(), c chan os.Signal) {
	<-c
	fmt.Println("waiting to shut down gracefully...")
	cancelFn()

	<-c
	fmt.Println("hard exiting (killed)")
	os.Exit(1)
}
