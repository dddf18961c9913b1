package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ IdentityStore = (*PGStore)(nil)

// PGStore implements IdentityStore over PostgreSQL.
type PGStore struct {
	db *sql.DB
}

// Open connects with pool settings sized for request-bound work.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const identityColumns = `id, email, phone, display_name, password_hash, role,
	is_active, is_verified, language, last_login_at,
	reset_token_hash, reset_token_expires_at, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, id *Identity) error {
	_, err := s.db.ExecContext(ctx,
		`insert into identities(id, email, phone, display_name, password_hash, role,
			is_active, is_verified, language, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		id.ID, id.Email, nullable(id.Phone), id.DisplayName, id.PasswordHash, string(id.Role),
		id.Active, id.Verified, id.Language, id.CreatedAt, id.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where id=$1`, id)
	return scanIdentity(row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where email=$1`, email)
	return scanIdentity(row)
}

func (s *PGStore) List(ctx context.Context) ([]*Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+identityColumns+` from identities order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set password_hash=$2, updated_at=now() where id=$1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set last_login_at=$2 where id=$1`, id, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) SetResetToken(ctx context.Context, id, digest string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set reset_token_hash=$2, reset_token_expires_at=$3, updated_at=now()
		 where id=$1`,
		id, digest, expiresAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ConsumeResetToken performs the redeem as one conditional UPDATE: the
// password swap and the token clear either both happen or neither does. A
// follow-up read only classifies the failure, it never mutates.
func (s *PGStore) ConsumeResetToken(ctx context.Context, digest, newPasswordHash string, now time.Time) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`update identities
		 set password_hash=$2, reset_token_hash=null, reset_token_expires_at=null, updated_at=now()
		 where reset_token_hash=$1 and is_active and reset_token_expires_at > $3
		 returning `+identityColumns, digest, newPasswordHash, now)
	id, err := scanIdentity(row)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var expired bool
	err = s.db.QueryRowContext(ctx,
		`select reset_token_expires_at <= $2 from identities
		 where reset_token_hash=$1 and is_active`, digest, now).Scan(&expired)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrResetNotFound
	case err != nil:
		return nil, err
	case expired:
		return nil, ErrResetExpired
	default:
		// Matched and unexpired yet the update hit nothing: lost the race
		// to a concurrent consume.
		return nil, ErrResetNotFound
	}
}

func (s *PGStore) SetActive(ctx context.Context, ids []string, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`update identities set is_active=$2, updated_at=now() where id = any($1)`,
		ids, active)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*Identity, error) {
	var (
		id        Identity
		phone     sql.NullString
		role      string
		lastLogin sql.NullTime
		resetHash sql.NullString
		resetExp  sql.NullTime
	)
	err := row.Scan(&id.ID, &id.Email, &phone, &id.DisplayName, &id.PasswordHash, &role,
		&id.Active, &id.Verified, &id.Language, &lastLogin,
		&resetHash, &resetExp, &id.CreatedAt, &id.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	id.Phone = phone.String
	id.Role = Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		id.LastLoginAt = &t
	}
	id.ResetTokenHash = resetHash.String
	if resetExp.Valid {
		t := resetExp.Time
		id.ResetTokenExpiresAt = &t
	}
	return &id, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// pgx surfaces SQLSTATE in the error string; 23505 is unique_violation.
	return err != nil && (strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key"))
}
