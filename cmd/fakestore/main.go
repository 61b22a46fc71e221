package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/pkg/fakestore"
	"github.com/jakechorley/study-scheduler/pkg/utils/logging"
)

func main() {
	var (
		addr     string
		seedPath string
		sticky   bool
	)

	rootCmd := &cobra.Command{
		Use:          "fakestore",
		Short:        "Serve an in-memory study store for local development",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.InitLogger("fakestore", false)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			store := fakestore.New()
			store.StickySubjectNumbers = sticky

			if seedPath != "" {
				f, err := os.Open(seedPath)
				if err != nil {
					return fmt.Errorf("failed to open seed file: %w", err)
				}
				err = store.LoadSeed(f)
				f.Close()
				if err != nil {
					return err
				}
				logger.Info("Loaded seed", zap.String("path", seedPath))
			}

			server := &http.Server{Addr: addr, Handler: store.Handler(), ReadHeaderTimeout: 5 * time.Second}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Serving fake store", zap.String("addr", addr), zap.Bool("sticky_subject_numbers", sticky))
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	rootCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8081", "Listen address")
	rootCmd.Flags().StringVar(&seedPath, "seed", "", "YAML file with studies, groups, volunteers, appointments and associations")
	rootCmd.Flags().BoolVar(&sticky, "sticky", false, "Ignore deletes and volunteer patches on rows with a subject number")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
