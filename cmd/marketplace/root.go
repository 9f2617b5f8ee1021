package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RushiPardeshi/agent-marketplace/pkg/config"
	"github.com/RushiPardeshi/agent-marketplace/pkg/store"
)

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "marketplace",
		Short:         "Agent-to-agent price negotiation marketplace",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("MARKETPLACE_CONFIG"), "path to config YAML")

	root.AddCommand(newSeedCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newNegotiateCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (store.Repository, error) {
	repo, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	return store.NewInstrumented(repo), nil
}

func openBackend(cfg *config.Config) (store.Repository, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "file":
		return store.NewFile(cfg.Store.BaseDir)
	case "redis":
		return store.NewRedis(store.RedisConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
	case "firestore":
		project := cfg.Store.FirestoreProject
		if project == "" {
			project = cfg.GCPProject
		}
		return store.NewFirestore(context.Background(), store.FirestoreConfig{
			ProjectID:       project,
			CredentialsFile: cfg.GCPCredentials,
		})
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
