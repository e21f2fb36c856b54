package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/pdfrag-mcp/internal/config"
	"github.com/dshills/pdfrag-mcp/internal/logger"
	"github.com/dshills/pdfrag-mcp/internal/mcp"
	"github.com/dshills/pdfrag-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("PDF RAG MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		fmt.Printf("Vector Extension: %v\n", storage.VectorExtensionAvailable)
		os.Exit(0)
	}

	envFile := os.Getenv("PDFRAG_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	settings, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for the MCP protocol
	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(settings.Log.Level)
	logCfg.JSON = settings.Log.JSON
	logger.Init(logCfg)
	log := logger.Default()

	mcp.ServerVersion = version
	log.Info("PDF RAG MCP server starting", "version", version)
	log.Info("storage build",
		"mode", storage.BuildMode,
		"driver", storage.DriverName,
		"vector_extension", storage.VectorExtensionAvailable,
		"db_path", settings.DBPath)

	server, err := mcp.NewServer(settings, log)
	if err != nil {
		log.Error("failed to create MCP server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())
		cancel()
	case err := <-errChan:
		if err != nil {
			log.Error("server error", "error", err)
			return
		}
	}

	log.Info("server stopped")
}
