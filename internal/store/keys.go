package store

import "time"

// Fixed keys shared with the external worker and the web client. The
// literal values are part of the wire contract; changing them orphans
// existing data.
const (
	// ScanQueueKey is the ordered list the worker drains with a blocking pop.
	ScanQueueKey = "scan_queue"
	// LatestDealKey holds the most recent system-wide deal.
	LatestDealKey = "latest_deal"
	// DealHistoryKey is the capped system-wide deal history list.
	DealHistoryKey = "deal_history"
	// SystemStatusKey holds the worker liveness marker.
	SystemStatusKey = "system_status"
	// SupportTicketsKey collects support messages flagged for the admin.
	SupportTicketsKey = "support_tickets"
)

// SessionKey maps an opaque session token to its identity email.
func SessionKey(token string) string { return "session:" + token }

// UserAuthKey holds the scrypt salt:hash credential for an email.
func UserAuthKey(email string) string { return "user_auth:" + email }

// UserDataKey holds the denormalized per-identity record.
func UserDataKey(email string) string { return "user_data:" + email }

// ChatHistoryKey holds the transcript of one chat, scoped by owner so a
// chat id can never address another identity's history.
func ChatHistoryKey(email, chatID string) string {
	return "chat_history:" + email + ":" + chatID
}

// UsageKey buckets the metered-operation counter by identity and UTC
// calendar day.
func UsageKey(email string, day time.Time) string {
	return "usage_chat:" + email + ":" + day.UTC().Format("2006-01-02")
}

// SavedScansKey holds an identity's saved-deal list.
func SavedScansKey(email string) string { return "saved_scans:" + email }

// UserHistoryKey holds an identity's private recent-scan list.
func UserHistoryKey(email string) string { return "user_history:" + email }

// SupportLimitKey buckets the support-bot abuse counter by client IP.
func SupportLimitKey(ip string) string { return "support_limit:" + ip }
