package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dcrodman/chat/internal/core"
	"github.com/dcrodman/chat/internal/core/console"
	"github.com/dcrodman/chat/internal/server"
)

// Controller is the main entrypoint for the chat server. It's responsible for
// initializing any shared resources (such as logging and metrics), starting the
// server, and feeding it the operator's console input.
type Controller struct {
	Config *core.Config
	// Console is where operator directives are read from.
	Console io.Reader
	// Display is where operator reports are written. Defaults to stdout.
	Display console.Display
	// Registry collects the server's metrics. A new one carrying the Go
	// runtime and process collectors is created if nil.
	Registry *prometheus.Registry

	logger        *logrus.Logger
	server        *server.Server
	metricsServer *http.Server
}

// Start runs the server until the operator quits or ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which will be shared by everything the server runs.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	if c.Display == nil {
		c.Display = console.NewWriter(os.Stdout)
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
		c.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if c.Config.Metrics.Port > 0 {
		c.startMetricsServer()
	}

	c.server = server.New(c.Config, c.logger,
		server.WithDisplay(c.Display),
		server.WithMetrics(server.NewMetrics(c.Registry)),
	)
	defer c.Shutdown()

	// Failing to listen at startup is reported but not terminal; the operator
	// can pick a different port and #start.
	if err := c.server.Listen(); err != nil {
		c.logger.Errorf("error starting server on port %d: %v", c.server.Port(), err)
		c.Display.Display("ERROR - Could not listen for clients!")
	}

	go func() {
		err := console.ReadLines(ctx, c.Console, c.server.HandleAdminInput)
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Errorf("error reading console input: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.server.Done():
		return nil
	}
}

// Shutdown closes every connection and waits for their goroutines to exit.
func (c *Controller) Shutdown() {
	c.server.Quit()
	c.server.Wait()

	if c.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			c.logger.Warnf("error shutting down metrics server: %v", err)
		}
	}
}

// startMetricsServer exposes the Prometheus metrics over HTTP.
func (c *Controller) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", c.Config.Server.Hostname, c.Config.Metrics.Port)
	c.metricsServer = &http.Server{Addr: addr, Handler: mux}
	c.logger.Infof("starting metrics server on %s", addr)

	go func() {
		if err := c.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Warnf("error running metrics server: %v", err)
		}
	}()
}
