package domain

// User carries the credit balance. The balance is mutated exclusively through
// the ledger's debit/refund operations.
type User struct {
	ID      string
	Credits int
}
