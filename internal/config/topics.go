package config

const (
	// TopicEmbeddingQueued carries a notification for every newly queued
	// embedding item. Workers use it only to wake up; the queue table stays
	// the source of truth.
	TopicEmbeddingQueued = "embedding.queued"

	// ChannelEmbeddingWorker is the channel embedding workers share.
	ChannelEmbeddingWorker = "embedding-worker"
)
