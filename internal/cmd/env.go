package cmd

import (
	"fmt"
	"os"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/config"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/job"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/launch"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/provider"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/state"
	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/workspace"
)

// stateDirFlag overrides state-root discovery; set as a persistent flag
// and passed through to the detached supervisor so parent and child
// always agree on the root.
var stateDirFlag string

// env bundles everything a command needs, resolved once per invocation.
type env struct {
	Root      string
	Store     *state.Store
	Registry  *job.Registry
	Providers *provider.Registry
	Config    *config.Config
	Launcher  *launch.Launcher
}

// openEnv resolves the state root, loads config, and wires the stores.
// The root is created if missing; every command may be the first one
// ever run in a workspace.
func openEnv() (*env, error) {
	var root string
	var err error
	if stateDirFlag != "" {
		if root, err = workspace.ResolvePath(stateDirFlag, ""); err != nil {
			return nil, err
		}
		if err = os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("creating state root: %w", err)
		}
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
		if root, err = workspace.EnsureRoot(cwd); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	providers := provider.Defaults()
	if err := cfg.ApplyProviders(providers); err != nil {
		return nil, fmt.Errorf("applying provider overrides: %w", err)
	}

	store := state.NewStore(root)
	registry := job.NewRegistry(store)
	return &env{
		Root:      root,
		Store:     store,
		Registry:  registry,
		Providers: providers,
		Config:    cfg,
		Launcher:  launch.New(registry, providers, cfg),
	}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDirFlag, "state-dir", "",
		"State directory (default: $SISYPHUS_STATE_DIR, nearest .sisyphus, or ~/.sisyphus)")
}
