package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routeforge/dispatch/pkg/messaging"
	"github.com/routeforge/dispatch/pkg/vrp"
)

// Ledger is a double-entry book of what a completed job owes its
// couriers in wages and what it spent on fuel, posted once per finished
// run so operators have an audit trail independent of the GA's
// in-memory Cost computation.
type Ledger struct {
	db        *sql.DB
	msgClient *messaging.Client
}

// Account is a ledger account: one per courier (wages payable) or one
// per job (fuel expense).
type Account struct {
	ID        uuid.UUID
	Owner     string // "courier:<id>" or "job:<id>"
	Type      string // "liability" (wages owed) or "expense" (fuel burned)
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Entry is one posted debit or credit.
type Entry struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Type        string // "debit" or "credit"
	Amount      decimal.Decimal
	Balance     decimal.Decimal
	Reference   string
	Description string
	CreatedAt   time.Time
}

func NewLedger(db *sql.DB, msgClient *messaging.Client) *Ledger {
	return &Ledger{db: db, msgClient: msgClient}
}

// PostJobCosts breaks a completed solution's cost down per courier
// (wages) and per vehicle (fuel), and posts one ledger entry for each
// nonzero line, matching the weighting Cost applies in pkg/vrp.
func (l *Ledger) PostJobCosts(ctx context.Context, jobID string, problem *vrp.Problem, s *vrp.Solution, weights vrp.CostWeights) error {
	for i := 0; i < problem.NumCouriers(); i++ {
		minutes := s.TotalWorkTime(i)
		if minutes <= 0 {
			continue
		}
		wage := decimal.NewFromFloat(problem.Courier(i).HourlyRate / 60 * minutes)
		if err := l.credit(ctx, fmt.Sprintf("courier:%d", i), "liability", wage, jobID, "wages earned"); err != nil {
			return err
		}
	}

	for j := 0; j < problem.NumVehicles(); j++ {
		distance := s.Distance(j)
		if distance <= 0 {
			continue
		}
		fuel := decimal.NewFromFloat(weights.C * problem.Vehicle(j).FuelConsumption * distance)
		if err := l.debit(ctx, fmt.Sprintf("job:%s", jobID), "expense", fuel, jobID, fmt.Sprintf("fuel burned by vehicle %d", j)); err != nil {
			return err
		}
	}

	return nil
}

func (l *Ledger) credit(ctx context.Context, owner, accountType string, amount decimal.Decimal, reference, description string) error {
	return l.post(ctx, owner, accountType, "credit", amount, reference, description)
}

func (l *Ledger) debit(ctx context.Context, owner, accountType string, amount decimal.Decimal, reference, description string) error {
	return l.post(ctx, owner, accountType, "debit", amount, reference, description)
}

func (l *Ledger) post(ctx context.Context, owner, accountType, entryType string, amount decimal.Decimal, reference, description string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := l.getOrCreateAccount(ctx, tx, owner, accountType)
	if err != nil {
		return err
	}

	var newBalance decimal.Decimal
	if entryType == "credit" {
		newBalance = account.Balance.Add(amount)
	} else {
		newBalance = account.Balance.Sub(amount)
	}

	entry := &Entry{
		ID:          uuid.New(),
		AccountID:   account.ID,
		Type:        entryType,
		Amount:      amount,
		Balance:     newBalance,
		Reference:   reference,
		Description: description,
		CreatedAt:   time.Now(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO billing_entries (id, account_id, type, amount, balance, reference, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.AccountID, entry.Type, entry.Amount, entry.Balance,
		entry.Reference, entry.Description, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert billing entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE billing_accounts SET balance = $1, updated_at = $2 WHERE id = $3`,
		newBalance, time.Now(), account.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	l.msgClient.Publish(ctx, messaging.EventTypeBillingEntry, messaging.LedgerEntryEvent{
		EntryID:     entry.ID,
		Account:     owner,
		Type:        entryType,
		Amount:      entry.Amount.String(),
		Balance:     entry.Balance.String(),
		Reference:   entry.Reference,
		Description: entry.Description,
	})

	return nil
}

func (l *Ledger) getOrCreateAccount(ctx context.Context, tx *sql.Tx, owner, accountType string) (*Account, error) {
	var account Account
	err := tx.QueryRowContext(ctx,
		`SELECT id, owner, type, balance, created_at, updated_at FROM billing_accounts WHERE owner = $1 FOR UPDATE`,
		owner,
	).Scan(&account.ID, &account.Owner, &account.Type, &account.Balance, &account.CreatedAt, &account.UpdatedAt)

	if err == sql.ErrNoRows {
		account = Account{
			ID:        uuid.New(),
			Owner:     owner,
			Type:      accountType,
			Balance:   decimal.Zero,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO billing_accounts (id, owner, type, balance, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			account.ID, account.Owner, account.Type, account.Balance, account.CreatedAt, account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
		return &account, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return &account, nil
}

// Balance returns a courier's or job's current ledger balance.
func (l *Ledger) Balance(ctx context.Context, owner string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.db.QueryRowContext(ctx, `SELECT balance FROM billing_accounts WHERE owner = $1`, owner).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	return balance, err
}

// Entries returns recent entries for an account, most recent first.
func (l *Ledger) Entries(ctx context.Context, owner string, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT e.id, e.account_id, e.type, e.amount, e.balance, e.reference, e.description, e.created_at
		 FROM billing_entries e JOIN billing_accounts a ON a.id = e.account_id
		 WHERE a.owner = $1 ORDER BY e.created_at DESC LIMIT $2`,
		owner, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Type, &e.Amount, &e.Balance, &e.Reference, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
