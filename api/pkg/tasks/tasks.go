package tasks

import "context"

// Task topics, doubling as NATS subjects when the nats dispatcher is in
// use.
const (
	TopicProcessBuildDependencies = "tasks.process-build-dependencies"
	TopicProcessBuildArtifacts    = "tasks.process-build-artifacts"
	TopicArchiveArtifact          = "tasks.archive-artifact"
	TopicLinkArtifact             = "tasks.link-artifact"
	TopicGenerateChecksums        = "tasks.generate-checksums"
	TopicNotifyRequestor          = "tasks.notify-requestor"
)

// BuildTask drives the build-wide stages of the pipeline.
type BuildTask struct {
	BuildID string `json:"build_id"`
}

// ArchiveItemTask fetches a single registered archive item.
type ArchiveItemTask struct {
	ItemID string `json:"item_id"`
}

// LinkItemTask populates one archive item from an already fetched one.
type LinkItemTask struct {
	SourceID string `json:"source_id"`
	DestID   string `json:"dest_id"`
}

// Dispatcher hands a task off for execution, either via the message
// broker or synchronously in-process.
type Dispatcher interface {
	Enqueue(ctx context.Context, topic string, payload interface{}) error
}
