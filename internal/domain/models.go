// Package domain defines the entities persisted in the shared key-value
// store: the per-user record, chat transcripts, marketplace deals, scan
// tasks, and the system liveness marker. All types marshal to the JSON
// shapes the external worker and the web client already speak.
package domain

// Message roles within a chat transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// UserRecord is the denormalized per-identity record stored under
// user_data:<email>. It intentionally stays small: chat transcripts live
// under their own keys and the record only carries per-chat metadata.
//
// Fields:
//   - IsPremium: subscription tier flag, flipped by billing events.
//   - CustomerRef: opaque payment-provider customer reference.
//   - Chats: chat-id → metadata (title only, once migrated).
type UserRecord struct {
	IsPremium   bool                `json:"isPremium"`
	CustomerRef string              `json:"customerId,omitempty"`
	Chats       map[string]ChatMeta `json:"chats"`
}

// NewUserRecord returns an empty record for an identity seen for the
// first time (free tier, no chats).
func NewUserRecord() *UserRecord {
	return &UserRecord{Chats: map[string]ChatMeta{}}
}

// ChatMeta is the sidebar-level view of a chat.
//
// LegacyHistory carries transcripts written by an earlier schema that
// embedded the full history inside the user record. Reads fall back to it
// when the dedicated history key is absent; the next transcript write
// clears it (one-time migration, never written back).
type ChatMeta struct {
	Title         string `json:"title"`
	LegacyHistory []Turn `json:"history,omitempty"`
}

// Turn is a single utterance in a chat: who said it and what was said.
// Transcripts are append-only; turns are never reordered or edited.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Deal is a marketplace find reported by the scanning worker or saved by
// a user. Price stays a string: the worker reports localized price text
// ("1.299,90 €") and only the chart needs a numeric reading.
type Deal struct {
	ID         string `json:"id"`
	Price      string `json:"price"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Store      string `json:"store"`
	Opinion    string `json:"opinion"`
	Score      int    `json:"score"`
	Forecast   string `json:"forecast,omitempty"`
	Type       string `json:"type"`
	OwnerEmail string `json:"ownerEmail"`
	Timestamp  int64  `json:"timestamp"` // unix milliseconds
}

// ScanTask is the immutable unit of work appended to the scan queue for
// the external worker. The owner is always the resolved session identity,
// never a client-supplied value. Priority is a hint for the consumer; the
// queue itself stays strictly FIFO.
type ScanTask struct {
	Query      string   `json:"query"`
	Stores     []string `json:"stores"`
	OwnerEmail string   `json:"ownerEmail"`
	Condition  string   `json:"condition"`
	MinPrice   *float64 `json:"minPrice"`
	MaxPrice   *float64 `json:"maxPrice"`
	Timestamp  int64    `json:"timestamp"` // unix milliseconds
	Priority   bool     `json:"priority"`
	Source     string   `json:"source"`
}

// SystemStatus is the worker liveness marker, refreshed by heartbeat
// ingestions.
type SystemStatus struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}
