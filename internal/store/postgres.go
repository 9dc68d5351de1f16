package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spregistry/spreg/internal/retry"
	"github.com/spregistry/spreg/pkg/spreg"
)

//go:embed schema.sql
var Schema string

const pgUniqueViolation = "23505"

// PostgresStore implements spreg.Store on PostgreSQL. Update runs fn in a
// serializable transaction and retries it when PostgreSQL reports a
// serialization failure, so fn must not have side effects outside tx.
type PostgresStore struct {
	pool     *pgxpool.Pool
	executor *retry.Executor
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:     pool,
		executor: retry.Default(retry.SerializationClassifier{}),
	}
}

// EnsureSchema creates the registry tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) View(ctx context.Context, fn func(spreg.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (s *PostgresStore) Update(ctx context.Context, fn func(spreg.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	return s.executor.Execute(ctx, func(ctx context.Context) error {
		return pgx.BeginTxFunc(ctx, s.pool, opts, func(tx pgx.Tx) error {
			return fn(&pgTx{tx: tx, forUpdate: true})
		})
	})
}

type pgTx struct {
	tx        pgx.Tx
	forUpdate bool
}

const spColumns = `v.payload, v.version, v.created_at, v.updated_at, v.end_at, v.validated, v.modified`

func scanServiceProvider(row pgx.Row) (*spreg.ServiceProvider, error) {
	var (
		payload []byte
		sp      spreg.ServiceProvider
	)
	var version int
	var createdAt, updatedAt time.Time
	var endAt, validated *time.Time
	var modified bool
	if err := row.Scan(&payload, &version, &createdAt, &updatedAt, &endAt, &validated, &modified); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &sp); err != nil {
		return nil, fmt.Errorf("decode service provider: %w", err)
	}
	sp.Version = version
	sp.CreatedAt = createdAt.UTC()
	sp.UpdatedAt = updatedAt.UTC()
	sp.EndAt = utcPtr(endAt)
	sp.Validated = utcPtr(validated)
	sp.Modified = modified
	return &sp, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, spreg.ErrNotFound)
	}
	return err
}

func mapWriteError(err error, sp *spreg.ServiceProvider) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("entity %s: %w", sp.EntityID, spreg.ErrDuplicateEntity)
	}
	return err
}

func (t *pgTx) lock() string {
	if t.forUpdate {
		return " FOR UPDATE OF c"
	}
	return ""
}

func (t *pgTx) ServiceProvider(ctx context.Context, id uuid.UUID) (*spreg.ServiceProvider, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+spColumns+`
		FROM sp_current c JOIN sp_versions v ON v.sp_id = c.sp_id AND v.version = c.version
		WHERE c.sp_id = $1`+t.lock(), id)
	sp, err := scanServiceProvider(row)
	if err != nil {
		return nil, notFound(err, "service provider "+id.String())
	}
	return sp, nil
}

func (t *pgTx) ServiceProviderByEntityID(ctx context.Context, entityID string) (*spreg.ServiceProvider, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+spColumns+`
		FROM sp_current c JOIN sp_versions v ON v.sp_id = c.sp_id AND v.version = c.version
		WHERE v.entity_id = $1 AND v.end_at IS NULL`+t.lock(), entityID)
	sp, err := scanServiceProvider(row)
	if err != nil {
		return nil, notFound(err, "entity "+entityID)
	}
	return sp, nil
}

func (t *pgTx) ServiceProviders(ctx context.Context, filter spreg.ProviderFilter) ([]*spreg.ServiceProvider, error) {
	var (
		where []string
		args  []any
	)
	if filter.ServiceType != "" {
		args = append(args, string(filter.ServiceType))
		where = append(where, fmt.Sprintf("v.service_type = $%d", len(args)))
	}
	if len(filter.EntityIDs) > 0 {
		args = append(args, filter.EntityIDs)
		where = append(where, fmt.Sprintf("v.entity_id = ANY($%d)", len(args)))
	}
	if !filter.IncludeEnded {
		where = append(where, "v.end_at IS NULL")
	}

	query := `SELECT ` + spColumns + `
		FROM sp_current c JOIN sp_versions v ON v.sp_id = c.sp_id AND v.version = c.version`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY v.entity_id, v.created_at"

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list service providers: %w", err)
	}
	defer rows.Close()

	var out []*spreg.ServiceProvider
	for rows.Next() {
		sp, err := scanServiceProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (t *pgTx) Versions(ctx context.Context, id uuid.UUID) ([]*spreg.ServiceProvider, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+spColumns+` FROM sp_versions v WHERE v.sp_id = $1 ORDER BY v.version`, id)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []*spreg.ServiceProvider
	for rows.Next() {
		sp, err := scanServiceProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("service provider %s: %w", id, spreg.ErrNotFound)
	}
	return out, nil
}

func (t *pgTx) insertVersion(ctx context.Context, sp *spreg.ServiceProvider) error {
	payload, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("encode service provider: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO sp_versions
		(sp_id, version, entity_id, service_type, payload, created_at, updated_at, end_at, validated, modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sp.ID, sp.Version, sp.EntityID, string(sp.ServiceType), payload,
		sp.CreatedAt, sp.UpdatedAt, sp.EndAt, sp.Validated, sp.Modified)
	return mapWriteError(err, sp)
}

func (t *pgTx) InsertServiceProvider(ctx context.Context, sp *spreg.ServiceProvider) error {
	if sp.Version != 1 {
		return fmt.Errorf("new service provider must start at version 1, got %d", sp.Version)
	}
	if err := t.insertVersion(ctx, sp); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO sp_current (sp_id, version) VALUES ($1, $2)`, sp.ID, sp.Version)
	return err
}

func (t *pgTx) SaveServiceProvider(ctx context.Context, sp *spreg.ServiceProvider) error {
	payload, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("encode service provider: %w", err)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE sp_versions v SET
			entity_id = $3, service_type = $4, payload = $5, updated_at = $6,
			end_at = $7, validated = $8, modified = $9
		FROM sp_current c
		WHERE v.sp_id = $1 AND v.version = $2 AND c.sp_id = v.sp_id AND c.version = v.version`,
		sp.ID, sp.Version, sp.EntityID, string(sp.ServiceType), payload,
		sp.UpdatedAt, sp.EndAt, sp.Validated, sp.Modified)
	if err != nil {
		return mapWriteError(err, sp)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("save version %d of %s: %w", sp.Version, sp.ID, spreg.ErrConcurrentModification)
	}
	return nil
}

func (t *pgTx) AppendVersion(ctx context.Context, frozen, next *spreg.ServiceProvider) error {
	if frozen.ID != next.ID || next.Version != frozen.Version+1 {
		return fmt.Errorf("version %d of %s cannot follow version %d of %s", next.Version, next.ID, frozen.Version, frozen.ID)
	}
	if err := t.SaveServiceProvider(ctx, frozen); err != nil {
		return err
	}
	if err := t.insertVersion(ctx, next); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `UPDATE sp_current SET version = $3 WHERE sp_id = $1 AND version = $2`,
		next.ID, frozen.Version, next.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("advance %s to version %d: %w", next.ID, next.Version, spreg.ErrConcurrentModification)
	}
	return nil
}

func (t *pgTx) Children(ctx context.Context, spID uuid.UUID, kind spreg.ChildKind) ([]spreg.Child, error) {
	rows, err := t.tx.Query(ctx, `SELECT kind, payload, validated, end_at FROM sp_children
		WHERE sp_id = $1 AND ($2 = '' OR kind = $2) ORDER BY seq`, spID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var out []spreg.Child
	for rows.Next() {
		var (
			k                string
			payload          []byte
			validated, endAt *time.Time
		)
		if err := rows.Scan(&k, &payload, &validated, &endAt); err != nil {
			return nil, err
		}
		c, ok := spreg.NewChild(spreg.ChildKind(k))
		if !ok {
			return nil, fmt.Errorf("unknown child kind %q", k)
		}
		if err := json.Unmarshal(payload, c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		h := c.Header()
		h.CreatedAt = h.CreatedAt.UTC()
		h.Validated = utcPtr(validated)
		h.EndAt = utcPtr(endAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertChild(ctx context.Context, c spreg.Child) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Kind(), err)
	}
	h := c.Header()
	_, err = t.tx.Exec(ctx, `INSERT INTO sp_children (id, sp_id, kind, payload, created_at, validated, end_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.SPID, string(c.Kind()), payload, h.CreatedAt, h.Validated, h.EndAt)
	return err
}

func (t *pgTx) SetChildState(ctx context.Context, c spreg.Child) error {
	h := c.Header()
	tag, err := t.tx.Exec(ctx, `UPDATE sp_children SET validated = $2, end_at = $3 WHERE id = $1 AND kind = $4`,
		h.ID, h.Validated, h.EndAt, string(c.Kind()))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", c.Kind(), h.ID, spreg.ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteChild(ctx context.Context, kind spreg.ChildKind, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM sp_children WHERE id = $1 AND kind = $2`, id, string(kind))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, spreg.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Attributes(ctx context.Context) ([]*spreg.Attribute, error) {
	rows, err := t.tx.Query(ctx, `SELECT payload FROM attributes ORDER BY friendly_name`)
	if err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}
	defer rows.Close()

	var out []*spreg.Attribute
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var a spreg.Attribute
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("decode attribute: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertAttribute(ctx context.Context, a *spreg.Attribute) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attribute: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO attributes (id, friendly_name, name, payload) VALUES ($1, $2, $3, $4)`,
		a.ID, a.FriendlyName, a.Name, payload)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("attribute %s: %w", a.Name, spreg.ErrDuplicateEntity)
	}
	return err
}
