// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.


package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/climb-tre/onyx-analysis-helper/config"
	"github.com/climb-tre/onyx-analysis-helper/services"
)

// time allowed for open connections to close on shutdown
var shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <config.yaml>",
		Short: "Run the analysis validation service",
		Long: `Run the analysis validation service described by the given configuration
file. The service shuts down gracefully on SIGINT, SIGHUP, SIGTERM, or SIGQUIT.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info(fmt.Sprintf("Reading configuration from '%s'...", args[0]))
			if err := initConfig(args[0]); err != nil {
				return err
			}
			service, err := services.NewValidationService()
			if err != nil {
				return fmt.Errorf("Couldn't create the service: %s", err)
			}

			// Intercept the SIGINT, SIGHUP, SIGTERM, and SIGQUIT signals, shutting
			// down the service as gracefully as possible if they are encountered.
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan,
				syscall.SIGINT,
				syscall.SIGHUP,
				syscall.SIGTERM,
				syscall.SIGQUIT)
			defer signal.Stop(sigChan)

			return serve(service, config.Service.Port, sigChan)
		},
	}
}

// runs the service until it stops on its own or a signal arrives
func serve(service services.AnalysisService, port int, sigChan <-chan os.Signal) error {
	// Start the service in a goroutine so it doesn't block.
	errChan := make(chan error, 1)
	go func() {
		errChan <- service.Start(port)
	}()

	select {
	case err := <-errChan:
		service.Close()
		return err
	case sig := <-sigChan:
		slog.Info(fmt.Sprintf("Received %s", sig))
	}

	// Wait for connections to close until the deadline elapses.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("Shutting down")
	err := service.Shutdown(ctx)
	if startErr := <-errChan; err == nil {
		err = startErr
	}
	return err
}
