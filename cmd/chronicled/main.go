// Command chronicled is a minimal smoke-test harness around the chronicle
// store — not a full interactive command interface, just enough
// flag-driven wiring to exercise Setup/Update/Commit and ComputeState
// against an on-disk directory, using a dependency-free main.go (stdlib
// flag, no CLI framework).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rpggio/chronicle/internal/config"
	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/eval"
	"github.com/rpggio/chronicle/internal/graph"
	"github.com/rpggio/chronicle/internal/idgen"
	"github.com/rpggio/chronicle/internal/storage"
)

// recordTemplate describes the generic record shape this demo harness
// stores: an arbitrary-keyed map of arbitrary-keyed maps of untyped
// leaves, the loosest schema the container package can express (a real
// embedding application would supply its own concrete template instead).
func recordTemplate() *container.Template {
	return container.AnyKeysDict(container.AnyKeysDict(container.Any))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var cmdErr error
	switch os.Args[1] {
	case "setup":
		cmdErr = runSetup(cfg, logger, os.Args[2:])
	case "commit":
		cmdErr = runCommit(cfg, logger, os.Args[2:])
	case "state":
		cmdErr = runState(cfg, logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if cmdErr != nil {
		logger.Error("command failed", "error", cmdErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: chronicled <setup|commit|state> [flags]")
}

func openRepo(cfg config.Config) (*storage.Repo, error) {
	return storage.New(cfg.DB.Path, recordTemplate(), nil)
}

func runSetup(cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	fs.Parse(args)

	repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	store := graph.New(logger)
	if err := store.Setup(cfg.User.Name); err != nil {
		return err
	}
	if err := repo.SaveAll(store); err != nil {
		return err
	}
	logger.Info("initialized store", "dir", cfg.DB.Path, "user", cfg.User.Name)
	return nil
}

func runCommit(cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	branch := fs.String("branch", string(idgen.TrunkBranchID), "branch id to commit")
	deltaPath := fs.String("delta", "", "path to a JSON delta document to apply before committing")
	fs.Parse(args)

	repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	store := graph.New(logger)
	if err := repo.Load(store); err != nil {
		return err
	}

	if *deltaPath != "" {
		data, err := os.ReadFile(*deltaPath)
		if err != nil {
			return fmt.Errorf("read delta file: %w", err)
		}
		var raw container.Value
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse delta file: %w", err)
		}
		deltas, err := container.New("state", recordTemplate(), &raw)
		if err != nil {
			return fmt.Errorf("validate delta: %w", err)
		}
		if _, err := store.Update(idgen.ID(*branch), deltas, nil); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}

	id, err := store.Commit(idgen.ID(*branch))
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if err := repo.SaveAll(store); err != nil {
		return err
	}
	if id == "" {
		logger.Info("nothing to commit")
	} else {
		logger.Info("committed", "version", id)
		fmt.Println(id)
	}
	return nil
}

func runState(cfg config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	version := fs.String("version", "", "version or branch id to materialize")
	fs.Parse(args)
	if *version == "" {
		return fmt.Errorf("state requires -version")
	}

	repo, err := openRepo(cfg)
	if err != nil {
		return err
	}
	store := graph.New(logger)
	if err := repo.Load(store); err != nil {
		return err
	}

	target, err := store.ToVersionID(idgen.ID(*version), false)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", *version, err)
	}
	empty, err := container.New("state", recordTemplate(), container.NewDict())
	if err != nil {
		return err
	}
	result, err := eval.ComputeState(store, target, empty)
	if err != nil {
		return fmt.Errorf("compute state: %w", err)
	}

	data, err := json.MarshalIndent(result.Value(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
