package observability

// Metric name prefixes
const (
	MetricPrefix = "lobbybot"
)

// Metric names
const (
	// Channel lifecycle metrics
	ChannelsCreatedTotal   = MetricPrefix + ".channels.created_total"
	ChannelsDeletedTotal   = MetricPrefix + ".channels.deleted_total"
	ChannelsAbandonedTotal = MetricPrefix + ".channels.abandoned_total"
	ChannelsActive         = MetricPrefix + ".channels.active"

	// Ownership metrics
	OwnerChangesTotal = MetricPrefix + ".owners.changes_total"

	// Sweep metrics
	SweepReapsTotal = MetricPrefix + ".sweep.reaps_total"

	// Cache metrics
	CacheHitsTotal   = MetricPrefix + ".cache.hits_total"
	CacheMissesTotal = MetricPrefix + ".cache.misses_total"
)

// Label keys
const (
	LabelType = "type"
	LabelKind = "kind"
)

// Owner change types
const (
	OwnerChangeClaim    = "claim"
	OwnerChangeTransfer = "transfer"
)
