package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jwynia/corticai/pkg/config"
	"github.com/jwynia/corticai/pkg/corticai"
	"github.com/jwynia/corticai/pkg/value"
)

// loadConfig resolves the config file, environment and persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	if autoCreate, _ := cmd.Flags().GetBool("auto-create"); autoCreate {
		cfg.AutoCreate = true
	}
	// The CLI runs one command per process, so the index needs a home on
	// disk to be useful across invocations.
	if cfg.IndexPath == "" && !cfg.InMemory {
		cfg.IndexPath = filepath.Join(filepath.Dir(filepath.Clean(cfg.DatabasePath)), "index.json")
	}
	return cfg, nil
}

// withDB opens the database for one command and closes it afterwards.
func withDB(cmd *cobra.Command, fn func(ctx context.Context, db *corticai.DB) error) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Runtime.ApplyRuntimeMemory()

	db, err := corticai.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing database: %w", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, db)
}

// parseProps turns repeated k=v flags into ordered properties.
func parseProps(pairs []string) (*value.Properties, error) {
	props := value.NewProperties()
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q, want key=value", pair)
		}
		props.Set(key, value.ParseLiteral(raw))
	}
	return props, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📂 Initializing corticai in %s\n", dataDir)

	graphDir := filepath.Join(dataDir, "graph")
	if err := os.MkdirAll(graphDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", graphDir, err)
	}

	cfg := config.Default()
	cfg.DatabasePath = graphDir
	cfg.IndexPath = filepath.Join(dataDir, "index.json")
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	configPath := filepath.Join(dataDir, "corticai.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if err := os.WriteFile(configPath, append([]byte("# corticai configuration\n"), data...), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintln(out, "✅ Database initialized")
	fmt.Fprintf(out, "   Config: %s\n", configPath)
	fmt.Fprintf(out, "   Next:   corticai --config %s stats\n", configPath)
	return nil
}
