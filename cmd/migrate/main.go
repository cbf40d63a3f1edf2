package main

import (
	"context"                        // Context for seeding
	"strings"                        // Username normalisation
	"wallet_ledger/internal/config"  // Custom import path (Config)
	"wallet_ledger/internal/db"      // Custom import path (Database)
	"wallet_ledger/internal/storage" // Account store

	"github.com/sirupsen/logrus" // Logging library
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration

	gdb, err := db.Open(cfg.DSN(), !cfg.IsProd) // Open a connection to the database
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}

	// Seed the administrator when configured
	if cfg.AdminUsername == "" {
		return
	}
	store := storage.NewGorm(gdb)
	username := strings.ToLower(cfg.AdminUsername)
	if _, err := db.SeedAdmin(context.Background(), store, username, cfg.AdminPassword, cfg.Ledger.InitialWalletBalance); err != nil {
		logrus.Fatalf("seeding admin failed: %v", err)
	}
}
