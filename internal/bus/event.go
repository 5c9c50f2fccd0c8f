package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Namespaces used for subscriptions. A subscriber receives every event whose
// Kind starts with the namespace.
const (
	NamespaceMatrix   = "mx."
	NamespaceSession  = "session."
	NamespaceSync     = "sync."
	NamespaceRoomList = "roomlist."
	NamespaceTimeline = "timeline."
)

// Event kinds.
const (
	KindSyncBatch     = "mx.sync_batch"
	KindHistoryBatch  = "mx.history_batch"
	KindStatusChanged = "session.status_changed"
	KindLoggedIn      = "session.logged_in"
	KindLoggedOut     = "session.logged_out"
	KindAuthFailed    = "session.auth_failed"
	KindSyncConnected = "sync.connected"
	KindSyncFailed    = "sync.failed"
	KindSyncBatchDone = "sync.batch_ingested"
	KindRoomListDiff  = "roomlist.diff"
	KindEventUpserted = "timeline.event_upserted"
	KindSendQueued    = "timeline.send_queued"
	KindSendAck       = "timeline.send_ack"
	KindSendFailed    = "timeline.send_failed"
)
