package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/bigkevmcd/capomastro/api/pkg/aggregator"
	"github.com/bigkevmcd/capomastro/api/pkg/archive"
	"github.com/bigkevmcd/capomastro/api/pkg/notification"
	"github.com/bigkevmcd/capomastro/api/pkg/store"
	"github.com/bigkevmcd/capomastro/api/pkg/types"
)

// Handlers implements the task pipeline that runs after a build
// notification lands: reconcile project builds, archive the artifacts,
// checksum them and tell the requestor.
type Handlers struct {
	store      store.Store
	aggregator *aggregator.Aggregator
	archiver   *archive.Archiver
	notifier   notification.Notifier

	dispatcher Dispatcher
}

func NewHandlers(store store.Store, aggregator *aggregator.Aggregator, archiver *archive.Archiver, notifier notification.Notifier) *Handlers {
	return &Handlers{
		store:      store,
		aggregator: aggregator,
		archiver:   archiver,
		notifier:   notifier,
	}
}

// SetDispatcher wires in the dispatcher handlers use to enqueue the next
// pipeline stage. Set after construction, the inline dispatcher needs the
// handlers first.
func (h *Handlers) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// ProcessBuildDependencies folds the build into waiting project builds,
// then moves on to artifact processing.
func (h *Handlers) ProcessBuildDependencies(ctx context.Context, task BuildTask) error {
	buildID, err := h.aggregator.ReconcileBuild(ctx, task.BuildID)
	if err != nil {
		return err
	}
	return h.dispatcher.Enqueue(ctx, TopicProcessBuildArtifacts, BuildTask{BuildID: buildID})
}

// ProcessBuildArtifacts registers the build's artifacts with the default
// archive and fans out one task per physical copy. The first copy of each
// artifact is fetched, later copies are linked from it.
func (h *Handlers) ProcessBuildArtifacts(ctx context.Context, task BuildTask) error {
	defaultArchive, err := h.store.GetDefaultArchive(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info().Str("build_id", task.BuildID).Msg("no default archive defined, skipping archiving")
			return h.dispatcher.Enqueue(ctx, TopicNotifyRequestor, task)
		}
		return err
	}

	items, err := h.archiver.AddBuild(ctx, defaultArchive.ID, task.BuildID)
	if err != nil {
		return err
	}

	first := map[string]*types.ArchiveArtifact{}
	for _, item := range items {
		source, seen := first[item.ArtifactID]
		if !seen {
			first[item.ArtifactID] = item
			if err := h.dispatcher.Enqueue(ctx, TopicArchiveArtifact, ArchiveItemTask{ItemID: item.ID}); err != nil {
				return err
			}
			continue
		}
		err := h.dispatcher.Enqueue(ctx, TopicLinkArtifact, LinkItemTask{
			SourceID: source.ID,
			DestID:   item.ID,
		})
		if err != nil {
			return err
		}
	}

	if err := h.dispatcher.Enqueue(ctx, TopicGenerateChecksums, task); err != nil {
		return err
	}
	return h.dispatcher.Enqueue(ctx, TopicNotifyRequestor, task)
}

func (h *Handlers) ArchiveArtifact(ctx context.Context, task ArchiveItemTask) error {
	return h.archiver.ArchiveItem(ctx, task.ItemID)
}

func (h *Handlers) LinkArtifact(ctx context.Context, task LinkItemTask) error {
	return h.archiver.LinkItems(ctx, task.SourceID, task.DestID)
}

func (h *Handlers) GenerateChecksums(ctx context.Context, task BuildTask) error {
	return h.archiver.GenerateChecksums(ctx, task.BuildID)
}

// NotifyRequestor emails the requestor of every project build the build
// completed. Notification failures are logged, the pipeline never fails
// because an email bounced.
func (h *Handlers) NotifyRequestor(ctx context.Context, task BuildTask) error {
	rows, err := h.store.ListProjectBuildDependencies(ctx, &store.ListProjectBuildDependenciesQuery{
		BuildID: task.BuildID,
	})
	if err != nil {
		return err
	}

	for _, row := range rows {
		projectBuild, err := h.store.GetProjectBuild(ctx, row.ProjectBuildID)
		if err != nil {
			return err
		}
		if projectBuild.Status == types.ProjectBuildStatusIncomplete || projectBuild.RequestedByID == nil {
			continue
		}
		project, err := h.store.GetProject(ctx, projectBuild.ProjectID)
		if err != nil {
			return err
		}

		err = h.notifier.Notify(ctx, &notification.Notification{
			Event:        notification.EventProjectBuildComplete,
			ProjectName:  project.Name,
			BuildKey:     projectBuild.BuildKey,
			ProjectBuild: projectBuild,
		})
		if err != nil {
			log.Err(err).
				Str("build_key", projectBuild.BuildKey).
				Msg("failed to notify requestor")
		}
	}
	return nil
}

// Handle routes a task to its handler, the single entrypoint both
// dispatchers share.
func (h *Handlers) Handle(ctx context.Context, topic string, payload interface{}) error {
	switch topic {
	case TopicProcessBuildDependencies:
		return h.ProcessBuildDependencies(ctx, payload.(BuildTask))
	case TopicProcessBuildArtifacts:
		return h.ProcessBuildArtifacts(ctx, payload.(BuildTask))
	case TopicArchiveArtifact:
		return h.ArchiveArtifact(ctx, payload.(ArchiveItemTask))
	case TopicLinkArtifact:
		return h.LinkArtifact(ctx, payload.(LinkItemTask))
	case TopicGenerateChecksums:
		return h.GenerateChecksums(ctx, payload.(BuildTask))
	case TopicNotifyRequestor:
		return h.NotifyRequestor(ctx, payload.(BuildTask))
	default:
		return fmt.Errorf("unknown task topic %q", topic)
	}
}
