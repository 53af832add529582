package capomastro

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bigkevmcd/capomastro/api/pkg/aggregator"
	"github.com/bigkevmcd/capomastro/api/pkg/archive"
	"github.com/bigkevmcd/capomastro/api/pkg/config"
	"github.com/bigkevmcd/capomastro/api/pkg/jenkins"
	"github.com/bigkevmcd/capomastro/api/pkg/notification"
	"github.com/bigkevmcd/capomastro/api/pkg/pubsub"
	"github.com/bigkevmcd/capomastro/api/pkg/server"
	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/tasks"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the capomastro api server.",
		Long:  "Start the capomastro api server and task workers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server config: %w", err)
			}
			if err := serve(cmd.Context(), &cfg); err != nil {
				log.Fatal().Err(err).Msg("failed to run server")
			}
			return nil
		},
	}
	return serveCmd
}

func serve(ctx context.Context, cfg *config.ServerConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewPostgresStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	jenkinsClient := jenkins.NewHTTPClient(cfg.Jenkins)
	importer := jenkins.NewImporter(db, jenkinsClient)

	notifier, err := notification.New(&cfg.Notifications, db)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}

	queuer := aggregator.NewJenkinsQueuer(db, jenkinsClient)
	builder := aggregator.NewBuilder(db, queuer)
	agg := aggregator.NewAggregator(db, builder)
	archiver := archive.NewArchiver(db, nil)

	handlers := tasks.NewHandlers(db, agg, archiver, notifier)

	var dispatcher tasks.Dispatcher
	var runner *tasks.Runner
	switch cfg.PubSub.Provider {
	case "inline":
		dispatcher = tasks.NewInlineDispatcher(handlers)
	default:
		ps, err := pubsub.NewInMemoryNats(cfg.PubSub.StoreDir)
		if err != nil {
			return fmt.Errorf("failed to start pubsub: %w", err)
		}
		defer ps.Close()

		natsDispatcher := tasks.NewNatsDispatcher(ps)
		handlers.SetDispatcher(natsDispatcher)
		dispatcher = natsDispatcher

		runner = tasks.NewRunner(ps, handlers)
		if err := runner.Start(ctx); err != nil {
			return fmt.Errorf("failed to start task runner: %w", err)
		}
		defer runner.Stop()
	}

	janitor, err := tasks.NewJanitor(cfg.Janitor, db, dispatcher)
	if err != nil {
		return fmt.Errorf("failed to create janitor: %w", err)
	}
	if err := janitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}
	defer func() {
		if err := janitor.Stop(); err != nil {
			log.Err(err).Msg("error stopping janitor")
		}
	}()

	apiServer := server.NewServer(cfg, db, importer, builder, dispatcher)
	return apiServer.ListenAndServe(ctx)
}
