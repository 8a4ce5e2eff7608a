package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openbenefits/medscreen/internal/core/api"
	"github.com/openbenefits/medscreen/internal/core/config"
	"github.com/openbenefits/medscreen/internal/core/db"
	"github.com/openbenefits/medscreen/internal/core/server"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP screening API service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().Int("health-port", 50051, "gRPC health probe port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
	}
	if cmd.Flags().Changed("health-port") {
		port, _ := cmd.Flags().GetInt("health-port")
		cfg.HealthPort = port
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var migrationID string
	checkQuery := `SELECT migration_id FROM migrations WHERE migration_id = '001_initial_schema.sql'`
	if err := database.Get(&migrationID, database.Rebind(checkQuery)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("migration 001_initial_schema not applied - run 'medscreen migrate' first")
		}
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	store := db.NewStore(queries)
	service := api.NewService(store, cfg.RuleCacheTTL, logger)

	httpServer, err := server.NewHTTPServer(cfg, service)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	healthServer, err := server.NewHealthServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create health server: %w", err)
	}

	logger.Info("starting medscreen",
		"version", Version,
		"addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		"health_port", cfg.HealthPort,
	)

	errChan := make(chan error, 2)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()
	go func() {
		errChan <- healthServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		healthErr := healthServer.Shutdown(ctx)
		httpErr := httpServer.Shutdown(ctx)
		if httpErr != nil {
			return httpErr
		}
		return healthErr
	}
}
