package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/meridian-id/authcore/internal/core/domain"
	"github.com/meridian-id/authcore/internal/repository"
)

const accountsTable = "auth.accounts"

var accountColumns = []string{
	"id",
	"email",
	"given_name",
	"family_name",
	"email_confirmed",
	"password_hash",
	"login_epoch",
	"last_failed_login",
	"external_ids",
	"registered_at",
}

// AccountRepository implements port.CredentialStore using PostgreSQL.
// The login-epoch column carries the optimistic concurrency protocol:
// ConditionalUpdate compiles to a single UPDATE guarded by the expected
// epoch, and the reported row count is the CAS outcome.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindByIdentifier retrieves an account by its login email.
func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Eq{"email": identifier})
}

// FindByExternalID retrieves the account owning the external subject identifier.
func (r *AccountRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Account, error) {
	return r.findOne(ctx, squirrel.Expr("? = ANY(external_ids)", externalID))
}

func (r *AccountRepository) findOne(ctx context.Context, pred any) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}

	return account, nil
}

// ConditionalUpdate applies the patch only when the stored login epoch
// matches expectedEpoch. The returned count is 0 when a concurrent
// attempt advanced the epoch first.
func (r *AccountRepository) ConditionalUpdate(ctx context.Context, accountID string, expectedEpoch int64, patch domain.AccountPatch) (int64, error) {
	query := r.applyPatch(r.builder.Update(accountsTable), patch).
		Where(squirrel.Eq{"id": accountID, "login_epoch": expectedEpoch})

	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build conditional update sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("conditional update account: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Update applies the patch without an epoch condition. Reserved for
// writes already serialized by a preceding conditional update.
func (r *AccountRepository) Update(ctx context.Context, accountID string, patch domain.AccountPatch) (int64, error) {
	query := r.applyPatch(r.builder.Update(accountsTable), patch).
		Where(squirrel.Eq{"id": accountID})

	stmt, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("update account: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Create inserts a new account row.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (*domain.Account, error) {
	if account.RegisteredAt.IsZero() {
		account.RegisteredAt = time.Now().UTC()
	}

	var passwordHash any
	if account.Password.Valid {
		passwordHash = account.Password.Value
	}

	externalIDs := account.ExternalIDs
	if externalIDs == nil {
		externalIDs = []string{}
	}

	stmt, args, err := r.builder.
		Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Email,
			account.GivenName,
			account.FamilyName,
			account.EmailConfirmed,
			passwordHash,
			account.LoginEpoch,
			account.LastFailedLogin,
			externalIDs,
			account.RegisteredAt,
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}

	stored := account
	stored.ExternalIDs = externalIDs
	return &stored, nil
}

func (r *AccountRepository) applyPatch(query squirrel.UpdateBuilder, patch domain.AccountPatch) squirrel.UpdateBuilder {
	if patch.Email != nil {
		query = query.Set("email", *patch.Email)
	}
	if patch.GivenName != nil {
		query = query.Set("given_name", *patch.GivenName)
	}
	if patch.FamilyName != nil {
		query = query.Set("family_name", *patch.FamilyName)
	}
	if patch.EmailConfirmed != nil {
		query = query.Set("email_confirmed", *patch.EmailConfirmed)
	}
	if patch.PasswordHash != nil {
		query = query.Set("password_hash", *patch.PasswordHash)
	}
	if patch.LastFailedLogin != nil {
		query = query.Set("last_failed_login", *patch.LastFailedLogin)
	}
	if patch.AddExternalID != nil {
		query = query.Set("external_ids", squirrel.Expr("array_append(external_ids, ?)", *patch.AddExternalID))
	}
	if patch.AdvanceLoginEpoch {
		query = query.Set("login_epoch", squirrel.Expr("login_epoch + 1"))
	}
	return query
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account         domain.Account
		passwordHash    *string
		lastFailedLogin *time.Time
	)

	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.GivenName,
		&account.FamilyName,
		&account.EmailConfirmed,
		&passwordHash,
		&account.LoginEpoch,
		&lastFailedLogin,
		&account.ExternalIDs,
		&account.RegisteredAt,
	); err != nil {
		return nil, err
	}

	if passwordHash != nil {
		account.Password = domain.NewPasswordHash(*passwordHash)
	}
	account.LastFailedLogin = lastFailedLogin

	return &account, nil
}
