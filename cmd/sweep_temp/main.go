package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mansoorceksport/imgcrop/internal/config"
	"github.com/mansoorceksport/imgcrop/internal/repository"
	"github.com/mansoorceksport/imgcrop/internal/service"
	"github.com/spf13/afero"
)

// One-shot temp cleanup for hosts that run it from cron instead of the
// server's background sweeper.
func main() {
	ttl := flag.Duration("ttl", 0, "Remove temp files older than this (defaults to TEMP_TTL)")
	webRoot := flag.String("web-root", "", "Web root to sweep (defaults to WEB_ROOT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	if *webRoot != "" {
		cfg.Storage.WebRoot = *webRoot
	}
	if *ttl > 0 {
		cfg.Storage.TempTTL = *ttl
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", "err", err)
	}
	if cfg.Storage.TempTTL <= 0 {
		fmt.Println("Usage: sweep_temp [-ttl <DURATION>] [-web-root <DIR>]")
		fmt.Println("\nRemoves temp images older than the TTL. TEMP_TTL=0 disables retention.")
		os.Exit(1)
	}

	paths := service.NewPathResolver(cfg.Storage)
	store := repository.NewLocalFileStore(afero.NewOsFs())
	sweeper := service.NewTempSweeper(store, paths.TempDir(), cfg.Storage.TempTTL, 0, log.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := sweeper.Sweep(ctx)
	if err != nil {
		log.Fatal("sweep failed", "removed", n, "err", err)
	}
	fmt.Printf("✓ Removed %d temp file(s) from %s\n", n, paths.TempDir())
}
