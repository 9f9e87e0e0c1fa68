package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists accounts, transactions and audit entries in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectAccount = `SELECT id, owner_id, type, balance, status, version, created_at, updated_at FROM accounts`

// CreateAccount inserts a new account row.
func (s *PostgresStore) CreateAccount(ctx context.Context, account Account) error {
	id, err := uuid.Parse(account.ID)
	if err != nil {
		return fmt.Errorf("%w: account id %q", ErrInvalidArgument, account.ID)
	}
	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.db.Exec(ctx, `INSERT INTO accounts (id, owner_id, type, balance, status, version, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		id, account.OwnerID, string(account.Type), toNumeric(account.Balance), string(account.Status), account.Version, createdAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: account %s already exists", ErrConflict, account.ID)
	}
	return err
}

// GetAccount fetches one account by id.
func (s *PostgresStore) GetAccount(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	account, err := scanAccount(s.db.QueryRow(ctx, selectAccount+` WHERE id = $1`, accountID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	return account, err
}

// ListAccounts returns accounts newest first.
func (s *PostgresStore) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		where = append(where, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	query := selectAccount + whereClause(where) + ` ORDER BY created_at DESC, id` + pageClause(&args, filter.Limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// UpdateAccountStatus performs a guarded status transition.
func (s *PostgresStore) UpdateAccountStatus(ctx context.Context, id string, from, to AccountStatus) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	account, err := scanAccount(s.db.QueryRow(ctx, `UPDATE accounts
        SET status = $1, version = version + 1, updated_at = now()
        WHERE id = $2 AND status = $3
        RETURNING id, owner_id, type, balance, status, version, created_at, updated_at`,
		string(to), accountID, string(from)))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.GetAccount(ctx, id); getErr != nil {
			return Account{}, getErr
		}
		return Account{}, fmt.Errorf("%w: account %s is not %s", ErrConflict, id, from)
	}
	return account, err
}

// ApplyBalanceChange writes the new balance under a version guard and
// inserts the transaction row in the same database transaction.
func (s *PostgresStore) ApplyBalanceChange(ctx context.Context, change BalanceChange) (Transaction, error) {
	accountID, err := uuid.Parse(change.AccountID)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: account %s", ErrNotFound, change.AccountID)
	}
	txID, err := uuid.Parse(change.Transaction.ID)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: transaction id %q", ErrInvalidArgument, change.Transaction.ID)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	cmd, err := tx.Exec(ctx, `UPDATE accounts
        SET balance = $1, version = version + 1, updated_at = now()
        WHERE id = $2 AND version = $3`,
		toNumeric(change.NewBalance), accountID, change.ExpectedVersion)
	if err != nil {
		return Transaction{}, err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
			return Transaction{}, err
		}
		if !exists {
			return Transaction{}, fmt.Errorf("%w: account %s", ErrNotFound, change.AccountID)
		}
		return Transaction{}, fmt.Errorf("%w: account %s changed since version %d", ErrConflict, change.AccountID, change.ExpectedVersion)
	}

	record := change.Transaction
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, account_id, owner_id, kind, signed_amount, description, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txID, accountID, record.OwnerID, string(record.Kind), toNumeric(record.SignedAmount), record.Description, string(record.Status), record.CreatedAt); err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return record, nil
}

// ListTransactions returns transactions newest first.
func (s *PostgresStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.AccountID != "" {
		accountID, err := uuid.Parse(filter.AccountID)
		if err != nil {
			return []Transaction{}, nil
		}
		args = append(args, accountID)
		where = append(where, fmt.Sprintf("account_id = $%d", len(args)))
	}
	query := `SELECT id, account_id, owner_id, kind, signed_amount, description, status, created_at FROM transactions` +
		whereClause(where) + ` ORDER BY created_at DESC, id` + pageClause(&args, filter.Limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]Transaction, 0)
	for rows.Next() {
		var (
			id, accountID uuid.UUID
			kind, status  string
			amount        pgtype.Numeric
			record        Transaction
		)
		if err := rows.Scan(&id, &accountID, &record.OwnerID, &kind, &amount, &record.Description, &status, &record.CreatedAt); err != nil {
			return nil, err
		}
		record.ID = id.String()
		record.AccountID = accountID.String()
		record.Kind = TransactionKind(kind)
		record.Status = TransactionStatus(status)
		record.SignedAmount = fromNumeric(amount)
		record.CreatedAt = record.CreatedAt.UTC()
		txs = append(txs, record)
	}
	return txs, rows.Err()
}

// AppendAudit inserts an audit entry.
func (s *PostgresStore) AppendAudit(ctx context.Context, entry AuditLogEntry) error {
	id, err := uuid.Parse(entry.ID)
	if err != nil {
		return fmt.Errorf("%w: audit id %q", ErrInvalidArgument, entry.ID)
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO audit_logs (id, actor_id, action, target_type, target_id, details, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, entry.ActorID, entry.Action, entry.TargetType, entry.TargetID, details, entry.CreatedAt.UTC())
	return err
}

// ListAuditLog returns audit entries newest first.
func (s *PostgresStore) ListAuditLog(ctx context.Context, filter AuditFilter) ([]AuditLogEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.TargetType != "" {
		args = append(args, filter.TargetType)
		where = append(where, fmt.Sprintf("target_type = $%d", len(args)))
	}
	if filter.TargetID != "" {
		args = append(args, filter.TargetID)
		where = append(where, fmt.Sprintf("target_id = $%d", len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	query := `SELECT id, actor_id, action, target_type, target_id, details, created_at FROM audit_logs` +
		whereClause(where) + ` ORDER BY created_at DESC, id` + pageClause(&args, filter.Limit, filter.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]AuditLogEntry, 0)
	for rows.Next() {
		var (
			id      uuid.UUID
			details []byte
			entry   AuditLogEntry
		)
		if err := rows.Scan(&id, &entry.ActorID, &entry.Action, &entry.TargetType, &entry.TargetID, &details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.ID = id.String()
		entry.CreatedAt = entry.CreatedAt.UTC()
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		id           uuid.UUID
		kind, status string
		balance      pgtype.Numeric
		account      Account
	)
	if err := row.Scan(&id, &account.OwnerID, &kind, &balance, &status, &account.Version, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return Account{}, err
	}
	account.ID = id.String()
	account.Type = AccountType(kind)
	account.Status = AccountStatus(status)
	account.Balance = fromNumeric(balance)
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()
	return account, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func pageClause(args *[]any, limit, offset int) string {
	limit, offset = pageBounds(limit, offset)
	*args = append(*args, limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(*args)-1, len(*args))
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).Set(d.Coefficient()), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
