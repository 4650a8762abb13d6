package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/rigradar/go-radar-backend/internal/domain"
	"github.com/rigradar/go-radar-backend/internal/store"
)

const secret = "whsec_test"

func TestParseEvent_Signature(t *testing.T) {
	body := []byte(`{"type":"invoice.paid","email":"a@x.com","customerId":"cus_1"}`)

	ev, err := ParseEvent(body, Sign(body, secret), secret)
	if err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if ev.Type != EventInvoicePaid || ev.Email != "a@x.com" || ev.CustomerRef != "cus_1" {
		t.Fatalf("event = %+v", ev)
	}

	if _, err := ParseEvent(body, "", secret); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("missing signature: %v", err)
	}
	if _, err := ParseEvent(body, Sign(body, "other-secret"), secret); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong secret: %v", err)
	}
	tampered := []byte(`{"type":"invoice.paid","email":"evil@x.com"}`)
	if _, err := ParseEvent(tampered, Sign(body, secret), secret); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("tampered body: %v", err)
	}
}

func TestSync_Apply(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := &Sync{Store: mem}

	// Activation creates the record if absent and keeps the customer ref.
	err := s.Apply(ctx, Event{Type: EventCheckoutCompleted, Email: "a@x.com", CustomerRef: "cus_1"})
	if err != nil {
		t.Fatalf("Apply activate: %v", err)
	}
	var rec domain.UserRecord
	if ok, _ := mem.GetJSON(ctx, store.UserDataKey("a@x.com"), &rec); !ok {
		t.Fatalf("record not created")
	}
	if !rec.IsPremium || rec.CustomerRef != "cus_1" {
		t.Fatalf("record = %+v", rec)
	}

	// Cancellation flips the flag but keeps the ref.
	if err := s.Apply(ctx, Event{Type: EventSubscriptionDeleted, Email: "a@x.com"}); err != nil {
		t.Fatalf("Apply cancel: %v", err)
	}
	mem.GetJSON(ctx, store.UserDataKey("a@x.com"), &rec)
	if rec.IsPremium {
		t.Fatalf("premium still set after cancellation")
	}
	if rec.CustomerRef != "cus_1" {
		t.Fatalf("customer ref lost: %+v", rec)
	}

	// Unknown event types are ignored.
	if err := s.Apply(ctx, Event{Type: "invoice.created", Email: "a@x.com"}); err != nil {
		t.Fatalf("unknown event: %v", err)
	}

	// Missing email is a validation failure.
	if err := s.Apply(ctx, Event{Type: EventInvoicePaid}); !errors.Is(err, ErrNoEmail) {
		t.Fatalf("missing email: %v", err)
	}
}
