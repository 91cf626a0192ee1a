package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/diwise/activitystreams/internal/pkg/application/objectstore"
	"github.com/diwise/activitystreams/internal/pkg/infrastructure/storage"
	"github.com/diwise/activitystreams/pkg/activitystreams/env"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

const appName string = "vocab-audit"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		assetsPath string
		prune      bool
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Find stored objects whose types are not defined by the configured vocabularies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, _, cleanup := o11y.Init(cmd.Context(), appName, buildinfo.SourceVersion(), "json")
			defer cleanup()

			return run(ctx, configPath, assetsPath, prune, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "/opt/diwise/config/activitystreams.yaml", "path to the service configuration")
	cmd.Flags().StringVarP(&assetsPath, "assets", "a", "/opt/diwise/config", "directory that vocabulary and context paths are relative to")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete the objects that can not be resolved")

	return cmd
}

func run(ctx context.Context, configPath, assetsPath string, prune bool, out io.Writer) error {
	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("failed to open configuration: %w", err)
	}
	defer f.Close()

	cfg, err := objectstore.LoadConfiguration(f)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	vocabs, shortIDs, err := cfg.LoadVocabularies(os.DirFS(assetsPath))
	if err != nil {
		return err
	}

	e, err := env.New(env.Vocabularies(vocabs...), env.ShortIDs(shortIDs))
	if err != nil {
		return err
	}

	s, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = audit(ctx, e, s, prune, out)
	return err
}

// audit writes one line per stored object that is malformed or has a type that
// e can not resolve, and returns how many there were
func audit(ctx context.Context, e *env.Environment, s storage.Store, prune bool, out io.Writer) (int, error) {
	log := logging.GetFromContext(ctx)

	documents, err := s.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list objects: %w", err)
	}

	log.Debug("number of stored objects", "count", len(documents))

	unresolved := make(map[string]string)

	for _, document := range documents {
		obj, err := objects.New(document)
		if err != nil {
			id, _ := document[objects.KeyID].(string)
			unresolved[id] = err.Error()
			continue
		}

		if _, err := e.Resolve(obj); err != nil {
			unresolved[obj.ID()] = err.Error()
		}
	}

	ids := make([]string, 0, len(unresolved))
	for id := range unresolved {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fmt.Fprintf(out, "%s\t%s\n", id, unresolved[id])

		if !prune || id == "" {
			continue
		}

		if err := s.Delete(ctx, id); err != nil {
			return len(ids), fmt.Errorf("failed to delete %s: %w", id, err)
		}

		log.Info("deleted object", slog.String("object_id", id))
	}

	log.Info("done auditing", slog.Int("total", len(documents)), slog.Int("unresolved", len(ids)))

	return len(ids), nil
}
