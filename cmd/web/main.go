package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/powerman/structlog"

	"github.com/uidai-stress/internal/config"
	"github.com/uidai-stress/internal/web"
)

func main() {
	config.LoadEnv()
	initLog()

	fmt.Println("=== District Stress API ===")

	webConfig := web.ConfigFromEnv()
	fmt.Printf("Server: http://%s:%d\n", webConfig.Server.Host, webConfig.Server.Port)
	fmt.Printf("Output directory: %s\n", webConfig.Data.OutputDir)
	fmt.Println("\nFeatures enabled:")
	fmt.Printf("  • Downloads: %v\n", webConfig.Features.DownloadsEnabled)
	fmt.Printf("  • Run history: %v\n", webConfig.Features.RunHistoryEnabled)
	fmt.Println()

	server, err := web.NewServer(webConfig)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func initLog() {
	structlog.DefaultLogger.
		SetPrefixKeys(
			structlog.KeyApp, structlog.KeyPID, structlog.KeyLevel, structlog.KeyUnit, structlog.KeyTime,
		).
		SetDefaultKeyvals(
			structlog.KeyApp, filepath.Base(os.Args[0]),
			structlog.KeySource, structlog.Auto,
		).
		SetSuffixKeys(
			structlog.KeyStack,
		).
		SetSuffixKeys(structlog.KeySource).
		SetKeysFormat(map[string]string{
			structlog.KeyTime:   " %[2]s",
			structlog.KeySource: " %6[2]s",
			structlog.KeyUnit:   " %6[2]s",
		})
}
