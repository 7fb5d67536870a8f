package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"disposisi/internal/workflow/models"
	id "disposisi/pkg/domain"
	"disposisi/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists records and their timelines in PostgreSQL.
type PostgresStore struct {
	db queryer
	// lockRows adds FOR UPDATE to single-record reads inside a transaction.
	lockRows bool
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx scopes a store to tx; single-record reads lock the row.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx, lockRows: true}
}

// Migrate creates the schema when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate records schema: %w", err)
		}
	}
	return nil
}

const recordColumns = `id, letter_number, subject, origin, origin_group, sender,
	confidentiality::text, urgency::text, agenda_number, secretariat_agenda, agenda_date, letter_date,
	status, created_by, created_at, updated_at,
	assigned_coordinators::text, assigned_staff::text, todo_list::text, notes,
	attachment_name, attachment_locator, version`

func (s *PostgresStore) CreateIfLetterNumberAvailable(ctx context.Context, rec *models.Record) error {
	attName, attLocator := attachmentColumns(rec.Attachment)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, letter_number, subject, origin, origin_group, sender,
			confidentiality, urgency, agenda_number, secretariat_agenda, agenda_date, letter_date,
			status, created_by, created_at, updated_at,
			assigned_coordinators, assigned_staff, todo_list, notes,
			attachment_name, attachment_locator, version)
		VALUES ($1, $2, $3, $4, $5, $6,
			$7::text::text[], $8::text::text[], $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17::text::text[], $18::text::text[], $19::text::text[], $20,
			$21, $22, $23)`,
		uuid.UUID(rec.ID), rec.LetterNumber, rec.Subject, rec.Origin, rec.OriginGroup, rec.Sender,
		pq.Array(rec.Confidentiality), pq.Array(rec.Urgency), rec.AgendaNumber, rec.SecretariatAgenda, rec.AgendaDate, rec.LetterDate,
		string(rec.Status), rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt,
		pq.Array(rec.AssignedCoordinators), pq.Array(rec.AssignedStaff), pq.Array(rec.TodoList), rec.Notes,
		attName, attLocator, rec.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert record: %w", err)
	}
	for _, entry := range rec.Timeline {
		if err := s.AppendTimeline(ctx, rec.ID, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`
	if s.lockRows {
		query += ` FOR UPDATE`
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, uuid.UUID(recordID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find record by id: %w", err)
	}
	if err := s.loadTimelines(ctx, []*models.Record{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if err := s.loadTimelines(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) FindFirstByLetterNumber(ctx context.Context, query string) (*models.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE strpos(lower(letter_number), lower($1)) > 0
		 ORDER BY seq LIMIT 1`, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("search record: %w", err)
	}
	if err := s.loadTimelines(ctx, []*models.Record{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update writes every non-timeline column if the stored version still equals
// expectedVersion, then appends the given timeline entries. Run it through a
// transaction-scoped store for the two steps to commit together.
func (s *PostgresStore) Update(ctx context.Context, rec *models.Record, expectedVersion int64, appended ...models.TimelineEntry) error {
	attName, attLocator := attachmentColumns(rec.Attachment)
	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET
			letter_number = $3, subject = $4, origin = $5, origin_group = $6, sender = $7,
			confidentiality = $8::text::text[], urgency = $9::text::text[],
			agenda_number = $10, secretariat_agenda = $11, agenda_date = $12, letter_date = $13,
			status = $14, updated_at = $15,
			assigned_coordinators = $16::text::text[], assigned_staff = $17::text::text[], todo_list = $18::text::text[],
			notes = $19, attachment_name = $20, attachment_locator = $21, version = $22
		WHERE id = $1 AND version = $2`,
		uuid.UUID(rec.ID), expectedVersion,
		rec.LetterNumber, rec.Subject, rec.Origin, rec.OriginGroup, rec.Sender,
		pq.Array(rec.Confidentiality), pq.Array(rec.Urgency),
		rec.AgendaNumber, rec.SecretariatAgenda, rec.AgendaDate, rec.LetterDate,
		string(rec.Status), rec.UpdatedAt,
		pq.Array(rec.AssignedCoordinators), pq.Array(rec.AssignedStaff), pq.Array(rec.TodoList),
		rec.Notes, attName, attLocator, rec.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n == 1 {
		for _, entry := range appended {
			if err := s.AppendTimeline(ctx, rec.ID, entry); err != nil {
				return err
			}
		}
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM records WHERE id = $1)`, uuid.UUID(rec.ID)).Scan(&exists); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *PostgresStore) AppendTimeline(ctx context.Context, recordID id.RecordID, entry models.TimelineEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO record_timeline (id, record_id, action, actor, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(entry.ID), uuid.UUID(recordID), entry.Action, entry.User, string(entry.Status), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append timeline entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, recordID id.RecordID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, uuid.UUID(recordID))
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) loadTimelines(ctx context.Context, recs []*models.Record) error {
	if len(recs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Record, len(recs))
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		byID[uuid.UUID(r.ID)] = r
		ids = append(ids, r.ID.String())
		r.Timeline = []models.TimelineEntry{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, action, actor, status, occurred_at
		FROM record_timeline
		WHERE record_id = ANY($1::text::uuid[])
		ORDER BY record_id, seq`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("load timelines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entryID, recordID uuid.UUID
			status            string
			entry             models.TimelineEntry
		)
		if err := rows.Scan(&entryID, &recordID, &entry.Action, &entry.User, &status, &entry.Timestamp); err != nil {
			return fmt.Errorf("scan timeline entry: %w", err)
		}
		entry.ID = id.TimelineEntryID(entryID)
		entry.Status = models.Status(status)
		if rec, ok := byID[recordID]; ok {
			rec.Timeline = append(rec.Timeline, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load timelines: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec                               models.Record
		recordID                          uuid.UUID
		status                            string
		confidentiality, urgency          pq.StringArray
		coordinators, staff, todo         pq.StringArray
		attachmentName, attachmentLocator sql.NullString
	)
	err := row.Scan(
		&recordID, &rec.LetterNumber, &rec.Subject, &rec.Origin, &rec.OriginGroup, &rec.Sender,
		&confidentiality, &urgency, &rec.AgendaNumber, &rec.SecretariatAgenda, &rec.AgendaDate, &rec.LetterDate,
		&status, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt,
		&coordinators, &staff, &todo, &rec.Notes,
		&attachmentName, &attachmentLocator, &rec.Version,
	)
	if err != nil {
		return nil, err
	}
	rec.ID = id.RecordID(recordID)
	rec.Status = models.Status(status)
	rec.Confidentiality = nonNil(confidentiality)
	rec.Urgency = nonNil(urgency)
	rec.AssignedCoordinators = nonNil(coordinators)
	rec.AssignedStaff = nonNil(staff)
	rec.TodoList = nonNil(todo)
	if attachmentLocator.Valid {
		rec.Attachment = &models.Attachment{Name: attachmentName.String, Locator: attachmentLocator.String}
	}
	return &rec, nil
}

func nonNil(a pq.StringArray) []string {
	if a == nil {
		return []string{}
	}
	return []string(a)
}

func attachmentColumns(a *models.Attachment) (sql.NullString, sql.NullString) {
	if a == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: a.Name, Valid: true}, sql.NullString{String: a.Locator, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
