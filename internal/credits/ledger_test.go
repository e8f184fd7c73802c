package credits

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		name    string
		quality string
		mode    domain.ProjectMode
		model   string
		want    int
	}{
		{"std design nano_banana", "std", domain.ModeDesign, "nano_banana", 2},
		{"4k copy seedream", "4k", domain.ModeCopy, "seedream", 6},
		{"draft design gemini_flash", "draft", domain.ModeDesign, "gemini_flash", 1},
		{"std copy gpt_image", "std", domain.ModeCopy, "gpt_image", 5},
		{"std design nano_banana_pro", "std", domain.ModeDesign, "nano_banana_pro", 3},
		{"unknown quality defaults std", "hd", domain.ModeDesign, "nano_banana", 2},
		{"unknown model no surcharge", "std", domain.ModeDesign, "mystery", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Calculate(tc.quality, tc.mode, tc.model)
			if got != tc.want {
				t.Fatalf("Calculate(%q, %q, %q) = %d, want %d", tc.quality, tc.mode, tc.model, got, tc.want)
			}
			// Pure: the same inputs always price the same.
			if again := Calculate(tc.quality, tc.mode, tc.model); again != got {
				t.Fatalf("Calculate not deterministic: %d then %d", got, again)
			}
		})
	}
}

type memUsers struct {
	mu      sync.Mutex
	credits map[string]int
}

func (m *memUsers) GetByID(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.credits[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.User{ID: userID, Credits: balance}, nil
}

func (m *memUsers) DebitCredits(_ context.Context, userID string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.credits[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if balance < amount {
		return 0, domain.ErrInsufficientCredits
	}
	m.credits[userID] = balance - amount
	return m.credits[userID], nil
}

func (m *memUsers) RefundCredits(_ context.Context, userID string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.credits[userID]; !ok {
		return 0, domain.ErrNotFound
	}
	m.credits[userID] += amount
	return m.credits[userID], nil
}

type memAudit struct {
	records []*domain.AuditRecord
	err     error
}

func (m *memAudit) Append(_ context.Context, record *domain.AuditRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, record)
	return nil
}

func testLedger(users domain.UserRepository, audit domain.AuditRepository) *Ledger {
	return NewLedger(users, audit, zerolog.New(io.Discard))
}

func TestDebitAppendsAuditRecord(t *testing.T) {
	users := &memUsers{credits: map[string]int{"u1": 5}}
	audit := &memAudit{}
	ledger := testLedger(users, audit)

	balance, err := ledger.Debit(context.Background(), "u1", "job-1", 2)
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if balance != 3 {
		t.Fatalf("balance = %d, want 3", balance)
	}
	if len(audit.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(audit.records))
	}
	rec := audit.records[0]
	if rec.Action != domain.ActionDeductCredits || rec.DeltaCredits != -2 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Meta["job_id"] != "job-1" {
		t.Fatalf("meta job_id = %v", rec.Meta["job_id"])
	}
}

func TestDebitInsufficientLeavesNoTrace(t *testing.T) {
	users := &memUsers{credits: map[string]int{"u1": 1}}
	audit := &memAudit{}
	ledger := testLedger(users, audit)

	_, err := ledger.Debit(context.Background(), "u1", "job-1", 2)
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if users.credits["u1"] != 1 {
		t.Fatalf("balance changed to %d", users.credits["u1"])
	}
	if len(audit.records) != 0 {
		t.Fatalf("audit records = %d, want 0", len(audit.records))
	}
}

func TestDebitRevertsWhenAuditFails(t *testing.T) {
	users := &memUsers{credits: map[string]int{"u1": 5}}
	audit := &memAudit{err: errors.New("audit down")}
	ledger := testLedger(users, audit)

	if _, err := ledger.Debit(context.Background(), "u1", "job-1", 2); err == nil {
		t.Fatal("expected error from failed audit append")
	}
	if users.credits["u1"] != 5 {
		t.Fatalf("balance not reverted: %d", users.credits["u1"])
	}
}

func TestRefundRestoresBalanceAndAudits(t *testing.T) {
	users := &memUsers{credits: map[string]int{"u1": 3}}
	audit := &memAudit{}
	ledger := testLedger(users, audit)

	ledger.Refund(context.Background(), "u1", "job-1", 2)

	if users.credits["u1"] != 5 {
		t.Fatalf("balance = %d, want 5", users.credits["u1"])
	}
	if len(audit.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(audit.records))
	}
	rec := audit.records[0]
	if rec.Action != domain.ActionRefundCredits || rec.DeltaCredits != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRefundSwallowsErrors(t *testing.T) {
	users := &memUsers{credits: map[string]int{}}
	ledger := testLedger(users, &memAudit{})

	// Unknown user: refund must not panic or propagate.
	ledger.Refund(context.Background(), "ghost", "job-1", 2)
}
