package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/config"
	"github.com/bigkevmcd/capomastro/api/pkg/store"
)

// Janitor periodically re-enqueues archive items that were registered but
// never fetched, usually because a worker died mid-transfer.
type Janitor struct {
	cfg        config.Janitor
	store      store.Store
	dispatcher Dispatcher

	cron gocron.Scheduler
}

func NewJanitor(cfg config.Janitor, store store.Store, dispatcher Dispatcher) (*Janitor, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Janitor{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		cron:       cron,
	}, nil
}

func (j *Janitor) Start(ctx context.Context) error {
	if !j.cfg.Enabled {
		log.Info().Msg("janitor disabled")
		return nil
	}

	_, err := j.cron.NewJob(
		gocron.DurationJob(j.cfg.SweepInterval),
		gocron.NewTask(func() {
			if err := j.SweepUnarchived(ctx); err != nil {
				log.Err(err).Msg("failed to sweep unarchived items")
			}
		}),
		gocron.WithName("sweep-unarchived"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	j.cron.Start()
	return nil
}

func (j *Janitor) Stop() error {
	return j.cron.Shutdown()
}

// SweepUnarchived re-enqueues every item that has been waiting longer
// than the grace period. ArchiveItem skips anything already fetched, so
// racing with an in-flight transfer is harmless.
func (j *Janitor) SweepUnarchived(ctx context.Context) error {
	items, err := j.store.ListArchiveArtifacts(ctx, &store.ListArchiveArtifactsQuery{
		Unarchived:    true,
		CreatedBefore: time.Now().Add(-j.cfg.SweepGracePeriod),
	})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	log.Info().Int("items", len(items)).Msg("re-enqueueing unarchived items")
	for _, item := range items {
		if err := j.dispatcher.Enqueue(ctx, TopicArchiveArtifact, ArchiveItemTask{ItemID: item.ID}); err != nil {
			return err
		}
	}
	return nil
}
