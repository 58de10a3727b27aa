package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenariokit/harness/internal/api"
	"github.com/scenariokit/harness/internal/logger"
)

var (
	servePort  int
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the control API for listing and running scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, cmd.InOrStdin())
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		if serveWatch {
			if err := a.loader.Watch(ctx); err != nil {
				return err
			}
		}

		port := a.h.Settings.ControlPort
		if servePort > 0 {
			port = servePort
		}
		addr := fmt.Sprintf("%s:%d", a.h.Settings.MockHost, port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewControlServer(a.loader, a.runner),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		logger.AddScopedLog("INFO", "api", fmt.Sprintf("Starting control server on %s...", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control server failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "control API port (overrides control.port)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "reload scripts when files in the folder change")
}
