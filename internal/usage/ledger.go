package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mentorix/backend/internal/apperr"
	"github.com/mentorix/backend/internal/models"
)

// Counters is a snapshot of a tenant's token accounting, read and
// written under the tenant row lock.
type Counters struct {
	TokensUsedDay    int64
	TokensUsedMonth  int64
	LastResetDaily   *time.Time
	LastResetMonthly *int
}

// Limits are per-tenant token budgets. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
}

// reserve rolls stale counters over to the current day and month, then
// admits the estimate or rejects it. It is pure so the admission rule can
// be tested without a database; callers apply the returned counters
// inside the same transaction that locked the row.
func reserve(c Counters, l Limits, estimate int64, now time.Time) (Counters, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	if c.LastResetDaily == nil || !c.LastResetDaily.UTC().Truncate(24*time.Hour).Equal(today) {
		c.TokensUsedDay = 0
		c.LastResetDaily = &today
	}

	month := int(now.UTC().Month())
	if c.LastResetMonthly == nil || *c.LastResetMonthly != month {
		c.TokensUsedMonth = 0
		c.LastResetMonthly = &month
	}

	if l.Daily > 0 && c.TokensUsedDay+estimate > l.Daily {
		return c, apperr.New(apperr.KindQuotaExceeded, "daily token limit reached")
	}
	if l.Monthly > 0 && c.TokensUsedMonth+estimate > l.Monthly {
		return c, apperr.New(apperr.KindQuotaExceeded, "monthly token limit reached")
	}

	c.TokensUsedDay += estimate
	c.TokensUsedMonth += estimate
	return c, nil
}

// settle adjusts counters after the real spend is known. Refunds from an
// overestimate never take a counter below zero.
func settle(c Counters, estimated, actual int64) Counters {
	delta := actual - estimated
	c.TokensUsedDay = max(0, c.TokensUsedDay+delta)
	c.TokensUsedMonth = max(0, c.TokensUsedMonth+delta)
	return c
}

// Ledger serializes quota decisions per tenant through SELECT FOR UPDATE
// on the tenant row, so two concurrent requests can never both spend the
// last of a budget.
type Ledger struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewLedger(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// CheckAndReserve charges estimate tokens against the tenant's budgets,
// rolling stale day and month windows first. Inactive and blocked
// tenants are refused outright.
func (l *Ledger) CheckAndReserve(ctx context.Context, tenantID uuid.UUID, estimate int64) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		c         Counters
		lim       Limits
		isActive  bool
		isBlocked bool
	)
	err = tx.QueryRow(ctx,
		`SELECT tokens_used_day, tokens_used_month, last_reset_daily, last_reset_monthly,
		        daily_token_limit, monthly_token_limit, is_active, is_blocked
		 FROM tenants WHERE id = $1 FOR UPDATE`,
		tenantID,
	).Scan(&c.TokensUsedDay, &c.TokensUsedMonth, &c.LastResetDaily, &c.LastResetMonthly,
		&lim.Daily, &lim.Monthly, &isActive, &isBlocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.KindNotFound, "tenant not found")
	}
	if err != nil {
		return fmt.Errorf("lock tenant counters: %w", err)
	}

	if !isActive || isBlocked {
		return apperr.New(apperr.KindForbidden, "tenant is not accepting requests")
	}

	next, reserveErr := reserve(c, lim, estimate, l.now())
	if err := l.writeCounters(ctx, tx, tenantID, next); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reserve: %w", err)
	}
	return reserveErr
}

// Reconcile replaces the reserved estimate with the actual spend. Called
// after the provider responds, or with actual zero when the request
// failed and the reservation should be returned.
func (l *Ledger) Reconcile(ctx context.Context, tenantID uuid.UUID, estimated, actual int64) error {
	if estimated == actual {
		return nil
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var c Counters
	err = tx.QueryRow(ctx,
		`SELECT tokens_used_day, tokens_used_month, last_reset_daily, last_reset_monthly
		 FROM tenants WHERE id = $1 FOR UPDATE`,
		tenantID,
	).Scan(&c.TokensUsedDay, &c.TokensUsedMonth, &c.LastResetDaily, &c.LastResetMonthly)
	if err != nil {
		return fmt.Errorf("lock tenant counters: %w", err)
	}

	if err := l.writeCounters(ctx, tx, tenantID, settle(c, estimated, actual)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reconcile: %w", err)
	}
	return nil
}

func (l *Ledger) writeCounters(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, c Counters) error {
	_, err := tx.Exec(ctx,
		`UPDATE tenants
		 SET tokens_used_day = $2, tokens_used_month = $3,
		     last_reset_daily = $4, last_reset_monthly = $5, updated_at = NOW()
		 WHERE id = $1`,
		tenantID, c.TokensUsedDay, c.TokensUsedMonth, c.LastResetDaily, c.LastResetMonthly,
	)
	if err != nil {
		return fmt.Errorf("write tenant counters: %w", err)
	}
	return nil
}

// DailyRecord is one day's accumulated usage for reporting.
type DailyRecord struct {
	EmbeddingTokens  int64
	ChatTokensInput  int64
	ChatTokensOutput int64
	CostUSD          float64
	Queries          int64
}

// RecordDaily folds a request's spend into the tenant's per-day usage
// row. Best-effort accounting: callers log failures rather than failing
// the request.
func (l *Ledger) RecordDaily(ctx context.Context, tenantID uuid.UUID, rec DailyRecord) error {
	day := l.now().UTC().Truncate(24 * time.Hour)
	_, err := l.db.Exec(ctx,
		`INSERT INTO api_usage (id, tenant_id, date, embedding_tokens, chat_tokens_input, chat_tokens_output, cost_usd, total_queries, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (tenant_id, date) DO UPDATE SET
		     embedding_tokens   = api_usage.embedding_tokens + EXCLUDED.embedding_tokens,
		     chat_tokens_input  = api_usage.chat_tokens_input + EXCLUDED.chat_tokens_input,
		     chat_tokens_output = api_usage.chat_tokens_output + EXCLUDED.chat_tokens_output,
		     cost_usd           = api_usage.cost_usd + EXCLUDED.cost_usd,
		     total_queries      = api_usage.total_queries + EXCLUDED.total_queries,
		     updated_at         = NOW()`,
		uuid.New(), tenantID, day,
		rec.EmbeddingTokens, rec.ChatTokensInput, rec.ChatTokensOutput, rec.CostUSD, rec.Queries,
	)
	if err != nil {
		return fmt.Errorf("record daily usage: %w", err)
	}
	return nil
}

// Report returns a tenant's per-day usage rows for the trailing window,
// newest first.
func (l *Ledger) Report(ctx context.Context, tenantID uuid.UUID, days int) ([]models.APIUsage, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	since := l.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)

	rows, err := l.db.Query(ctx,
		`SELECT id, tenant_id, date, embedding_tokens, chat_tokens_input, chat_tokens_output, cost_usd, total_queries, updated_at
		 FROM api_usage
		 WHERE tenant_id = $1 AND date >= $2
		 ORDER BY date DESC`,
		tenantID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("usage report: %w", err)
	}
	defer rows.Close()

	var out []models.APIUsage
	for rows.Next() {
		var u models.APIUsage
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Date, &u.EmbeddingTokens, &u.ChatTokensInput,
			&u.ChatTokensOutput, &u.CostUSD, &u.TotalQueries, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		out = append(out, u)
	}
	return out, nil
}
