// Package services – ChatService
//
// This file implements ChatService, the component that owns the chat
// lifecycle: it validates and sanitizes prompts, enforces the free-tier
// daily quota, calls the completion provider, and persists the user and
// assistant turns together with the sidebar metadata in one atomic
// commit. A failed provider call therefore consumes no quota and leaves
// no partial transcript.
//
// Observability: public methods are OpenTelemetry-instrumented; spans
// carry the chat identifier and tier so quota rejections can be traced
// per user.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/rigradar/go-radar-backend/internal/completion"
	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/store"
)

const (
	// defaultMaxMessageRunes caps a single user message.
	defaultMaxMessageRunes = 500
	// defaultTitleRunes caps the auto-generated sidebar title.
	defaultTitleRunes = 30
)

// Completer is the completion-provider contract required by ChatService.
type Completer interface {
	Complete(ctx context.Context, messages []completion.Message) (string, error)
}

// ChatService coordinates quota-gated chat turns and transcript storage.
type ChatService struct {
	Store       store.Store
	Completions Completer
	Quota       *Quota

	// MaxMessageRunes caps user messages by rune length; zero means the
	// default of 500.
	MaxMessageRunes int
	// TitleRunes caps auto-generated titles; zero means the default of 30.
	TitleRunes int
	// Now is a clock seam for tests; nil means time.Now.
	Now func() time.Time
}

// Reply is the outcome of one accepted chat turn.
type Reply struct {
	// Text is the assistant's answer.
	Text string
	// ChatID identifies the chat the turn was appended to; for a turn
	// that started a new chat it is the freshly minted identifier.
	ChatID string
}

// Answer runs one chat turn for the identity: sanitize the message, admit
// it against the daily quota, complete against the prior transcript, and
// persist both turns, the sidebar entry, and the usage increment in one
// commit.
//
// An empty chatID starts a new chat titled after the first message. A
// provider failure aborts before any write.
func (s *ChatService) Answer(ctx context.Context, email, chatID, message, lang string) (*Reply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("chat.lang", lang),
		),
	)
	defer span.End()

	message = sanitizeMessage(message, s.maxMessageRunes())
	if message == "" {
		return nil, ErrEmptyMessage
	}

	record := domain.NewUserRecord()
	if _, err := s.Store.GetJSON(ctx, store.UserDataKey(email), record); err != nil {
		return nil, fmt.Errorf("chat: load user record: %w", err)
	}
	if record.Chats == nil {
		record.Chats = map[string]domain.ChatMeta{}
	}
	span.SetAttributes(attribute.Bool("user.premium", record.IsPremium))

	adm, err := s.Quota.Check(ctx, email, record.IsPremium)
	if err != nil {
		return nil, err
	}

	now := s.now()
	newChat := chatID == ""
	if newChat {
		chatID = fmt.Sprintf("chat_%d", now.UnixMilli())
	}

	history, err := s.loadHistory(ctx, email, chatID, record)
	if err != nil {
		return nil, err
	}

	answer, err := s.Completions.Complete(ctx, buildPrompt(history, message, lang))
	if err != nil {
		return nil, fmt.Errorf("chat: completion: %w", err)
	}

	history = append(history,
		domain.Turn{Role: domain.RoleUser, Text: message},
		domain.Turn{Role: domain.RoleAssistant, Text: answer},
	)

	meta := record.Chats[chatID]
	if newChat || meta.Title == "" {
		meta.Title = titleFrom(message, s.titleRunes())
	}
	// The dedicated history key is authoritative from this write on.
	meta.LegacyHistory = nil
	record.Chats[chatID] = meta

	err = s.Store.Atomic(ctx, func(tx store.Tx) error {
		if err := tx.SetJSON(store.UserDataKey(email), record); err != nil {
			return err
		}
		if err := tx.SetJSON(store.ChatHistoryKey(email, chatID), history); err != nil {
			return err
		}
		adm.Apply(tx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat: persist turn: %w", err)
	}

	return &Reply{Text: answer, ChatID: chatID}, nil
}

// Sidebar returns the chat-id → metadata map for the identity, with the
// legacy embedded transcripts stripped (the sidebar never needs them).
// Store failures degrade to an empty sidebar so the UI keeps rendering.
func (s *ChatService) Sidebar(ctx context.Context, email string) map[string]domain.ChatMeta {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Sidebar")
	defer span.End()

	record := domain.NewUserRecord()
	if _, err := s.Store.GetJSON(ctx, store.UserDataKey(email), record); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("chat sidebar load failed, serving empty")
		return map[string]domain.ChatMeta{}
	}
	out := make(map[string]domain.ChatMeta, len(record.Chats))
	for id, meta := range record.Chats {
		meta.LegacyHistory = nil
		out[id] = meta
	}
	return out
}

// History returns the transcript of one chat. Absent chats and store
// failures both degrade to an empty transcript.
func (s *ChatService) History(ctx context.Context, email, chatID string) []domain.Turn {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	record := domain.NewUserRecord()
	if _, err := s.Store.GetJSON(ctx, store.UserDataKey(email), record); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("chat history record load failed, serving empty")
		return []domain.Turn{}
	}
	history, err := s.loadHistory(ctx, email, chatID, record)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("chat history load failed, serving empty")
		return []domain.Turn{}
	}
	return history
}

// loadHistory reads the dedicated transcript key and falls back to the
// transcript embedded in the user record by the earlier schema. The
// fallback is read-only; the migration completes on the next Answer
// write, which clears the embedded copy.
func (s *ChatService) loadHistory(ctx context.Context, email, chatID string, record *domain.UserRecord) ([]domain.Turn, error) {
	history := []domain.Turn{}
	ok, err := s.Store.GetJSON(ctx, store.ChatHistoryKey(email, chatID), &history)
	if err != nil {
		return nil, fmt.Errorf("chat: load history: %w", err)
	}
	if !ok {
		if meta, found := record.Chats[chatID]; found && len(meta.LegacyHistory) > 0 {
			history = append(history, meta.LegacyHistory...)
		}
	}
	return history, nil
}

// buildPrompt assembles the provider message list: persona first, then
// the prior transcript in order, then the new message.
func buildPrompt(history []domain.Turn, message, lang string) []completion.Message {
	msgs := make([]completion.Message, 0, len(history)+2)
	msgs = append(msgs, completion.Message{Role: completion.RoleSystem, Content: personaPrompt(lang)})
	for _, turn := range history {
		role := completion.RoleUser
		if turn.Role == domain.RoleAssistant {
			role = completion.RoleAssistant
		}
		msgs = append(msgs, completion.Message{Role: role, Content: turn.Text})
	}
	return append(msgs, completion.Message{Role: completion.RoleUser, Content: message})
}

// personaPrompt renders the assistant persona with the reply language
// pinned. Unknown language tags fall back to English.
func personaPrompt(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil || lang == "" {
		tag = language.English
	}
	return fmt.Sprintf(
		"You are RigRadar AI, an expert assistant for PC hardware, components and marketplace deals. "+
			"Give concise, practical advice on prices, compatibility and value. Reply in the language %q.",
		tag.String(),
	)
}

// sanitizeMessage trims whitespace, strips ASCII control characters, and
// clips the message to maxRunes.
func sanitizeMessage(msg string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(msg))
	for _, r := range msg {
		if r < 0x20 || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	msg = strings.TrimSpace(b.String())
	if utf8.RuneCountInString(msg) > maxRunes {
		runes := []rune(msg)
		msg = strings.TrimSpace(string(runes[:maxRunes]))
	}
	return msg
}

// titleFrom derives the sidebar title from the first message.
func titleFrom(message string, maxRunes int) string {
	runes := []rune(message)
	if len(runes) <= maxRunes {
		return message
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

func (s *ChatService) maxMessageRunes() int {
	if s.MaxMessageRunes > 0 {
		return s.MaxMessageRunes
	}
	return defaultMaxMessageRunes
}

func (s *ChatService) titleRunes() int {
	if s.TitleRunes > 0 {
		return s.TitleRunes
	}
	return defaultTitleRunes
}

func (s *ChatService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
