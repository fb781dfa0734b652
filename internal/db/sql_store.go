package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tudoramariei/votemonitor/internal/api"
	"github.com/tudoramariei/votemonitor/internal/forms"
	"github.com/tudoramariei/votemonitor/internal/services"
)

// SQLStore keeps forms as JSON documents next to the scalar columns used for lookups.
type SQLStore struct {
	db      *sqlx.DB
	adapter Adapter
	sb      sq.StatementBuilderType
}

// Open connects to dsn with driver and applies the driver's connection settings.
func Open(driver, dsn string) (*sqlx.DB, error) {
	adp, err := newAdapter(driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}
	if err := adp.PostCreate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func NewSQLStore(db *sqlx.DB, driver string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	adp, err := newAdapter(driver)
	if err != nil {
		return nil, err
	}
	return &SQLStore{
		db:      db,
		adapter: adp,
		sb:      sq.StatementBuilder.PlaceholderFormat(adp.Placeholder()),
	}, nil
}

func NewStore(db *sqlx.DB, driver string) (api.Store, error) {
	return NewSQLStore(db, driver)
}

func (s *SQLStore) logErr(prefix string, err error) {
	if err != nil {
		log.WithFields(log.Fields{"driver": s.adapter.Driver(), "op": prefix}).WithError(err).Error("sql store")
	}
}

func (s *SQLStore) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

type formRow struct {
	ID        string `db:"id"`
	NGOID     string `db:"ngo_id"`
	Version   int    `db:"version"`
	Document  string `db:"document"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

var formColumns = []string{"id", "ngo_id", "version", "document", "created_at", "updated_at"}

func (r formRow) decode() (*forms.Form, error) {
	f, err := forms.DecodeForm([]byte(r.Document))
	if err != nil {
		return nil, errors.Wrapf(err, "decode form %s", r.ID)
	}
	f.Version = r.Version
	f.CreatedAt = parseTime(r.CreatedAt)
	f.UpdatedAt = parseTime(r.UpdatedAt)
	return f, nil
}

func (s *SQLStore) InsertForm(ctx context.Context, ngoID string, f *forms.Form) error {
	doc, err := forms.EncodeForm(f)
	if err != nil {
		return errors.Wrap(err, "encode form")
	}
	q, args, err := s.sb.Insert("forms").
		Columns("id", "ngo_id", "code", "status", "version", "document", "created_at", "updated_at").
		Values(f.ID, ngoID, f.Code, string(f.Status), f.Version, string(doc), formatTime(f.CreatedAt), formatTime(f.UpdatedAt)).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build insert form")
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return errors.Wrapf(err, "insert form %s", f.ID)
}

func (s *SQLStore) GetForm(ctx context.Context, id string) (*services.FormRecord, error) {
	q, args, err := s.sb.Select(formColumns...).From("forms").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build get form")
	}
	var row formRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get form %s", id)
	}
	f, err := row.decode()
	if err != nil {
		return nil, err
	}
	return &services.FormRecord{NGOID: row.NGOID, Form: f}, nil
}

func (s *SQLStore) ListForms(ctx context.Context, ngoID string) ([]*forms.Form, error) {
	q, args, err := s.sb.Select(formColumns...).From("forms").Where(sq.Eq{"ngo_id": ngoID}).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list forms")
	}
	var rows []formRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "list forms of %s", ngoID)
	}
	out := make([]*forms.Form, 0, len(rows))
	for _, r := range rows {
		f, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// UpdateForm swaps the stored document only when its version still equals f.Version.
func (s *SQLStore) UpdateForm(ctx context.Context, f *forms.Form) error {
	next := f.Clone()
	next.Version = f.Version + 1
	doc, err := forms.EncodeForm(next)
	if err != nil {
		return errors.Wrap(err, "encode form")
	}
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		q, args, err := s.sb.Update("forms").
			Set("code", next.Code).
			Set("status", string(next.Status)).
			Set("version", next.Version).
			Set("document", string(doc)).
			Set("updated_at", formatTime(next.UpdatedAt)).
			Where(sq.Eq{"id": f.ID, "version": f.Version}).
			ToSql()
		if err != nil {
			return errors.Wrap(err, "build update form")
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return errors.Wrapf(err, "update form %s", f.ID)
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrap(err, "rows affected")
		} else if n == 1 {
			return nil
		}
		cq, cargs, err := s.sb.Select("COUNT(*)").From("forms").Where(sq.Eq{"id": f.ID}).ToSql()
		if err != nil {
			return errors.Wrap(err, "build count form")
		}
		var count int
		if err := tx.GetContext(ctx, &count, cq, cargs...); err != nil {
			return errors.Wrapf(err, "count form %s", f.ID)
		}
		if count == 0 {
			return services.NewNotFoundError("form not found")
		}
		return services.ErrStaleVersion
	})
	if err != nil {
		return err
	}
	f.Version = next.Version
	return nil
}

func (s *SQLStore) DeleteForm(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, del := range []sq.DeleteBuilder{
			s.sb.Delete("submissions").Where(sq.Eq{"form_id": id}),
			s.sb.Delete("forms").Where(sq.Eq{"id": id}),
		} {
			q, args, err := del.ToSql()
			if err != nil {
				return errors.Wrap(err, "build delete")
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return errors.Wrapf(err, "delete form %s", id)
			}
		}
		return nil
	})
}

type submissionRow struct {
	ID               string `db:"id"`
	FormID           string `db:"form_id"`
	NGOID            string `db:"ngo_id"`
	PollingStationID string `db:"polling_station_id"`
	ObserverID       string `db:"observer_id"`
	Answers          string `db:"answers"`
	Complete         bool   `db:"complete"`
	SubmittedAt      string `db:"submitted_at"`
}

func (s *SQLStore) InsertSubmission(ctx context.Context, sub *services.Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return errors.Wrap(err, "encode answers")
	}
	q, args, err := s.sb.Insert("submissions").
		Columns("id", "form_id", "ngo_id", "polling_station_id", "observer_id", "answers", "complete", "submitted_at").
		Values(sub.ID, sub.FormID, sub.NGOID, sub.PollingStationID, sub.ObserverID, string(answers), sub.Complete, formatTime(sub.SubmittedAt)).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build insert submission")
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return errors.Wrapf(err, "insert submission %s", sub.ID)
}

func (s *SQLStore) ListSubmissions(ctx context.Context, formID string) ([]*services.Submission, error) {
	q, args, err := s.sb.Select("id", "form_id", "ngo_id", "polling_station_id", "observer_id", "answers", "complete", "submitted_at").
		From("submissions").Where(sq.Eq{"form_id": formID}).OrderBy("submitted_at", "id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list submissions")
	}
	var rows []submissionRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "list submissions of %s", formID)
	}
	out := make([]*services.Submission, 0, len(rows))
	for _, r := range rows {
		sub := &services.Submission{
			ID:               r.ID,
			FormID:           r.FormID,
			NGOID:            r.NGOID,
			PollingStationID: r.PollingStationID,
			ObserverID:       r.ObserverID,
			Complete:         r.Complete,
			SubmittedAt:      parseTime(r.SubmittedAt),
		}
		if err := json.Unmarshal([]byte(r.Answers), &sub.Answers); err != nil {
			return nil, errors.Wrapf(err, "decode answers of %s", r.ID)
		}
		out = append(out, sub)
	}
	return out, nil
}

// AddAudit never fails the caller; a write error is logged.
func (s *SQLStore) AddAudit(ctx context.Context, e services.AuditEntry) {
	q, args, err := s.sb.Insert("audit_log").
		Columns("logged_at", "actor", "action", "target", "note").
		Values(formatTime(e.Time), e.Actor, e.Action, e.Target, e.Note).
		ToSql()
	if err != nil {
		s.logErr("build audit", err)
		return
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	s.logErr("add audit", err)
}

type auditRow struct {
	Time   string `db:"logged_at"`
	Actor  string `db:"actor"`
	Action string `db:"action"`
	Target string `db:"target"`
	Note   string `db:"note"`
}

func (s *SQLStore) ListAudit(ctx context.Context, target string) ([]services.AuditEntry, error) {
	q, args, err := s.sb.Select("logged_at", "actor", "action", "target", "note").
		From("audit_log").Where(sq.Eq{"target": target}).OrderBy("id").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list audit")
	}
	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "list audit of %s", target)
	}
	out := make([]services.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, services.AuditEntry{Time: parseTime(r.Time), Actor: r.Actor, Action: r.Action, Target: r.Target, Note: r.Note})
	}
	return out, nil
}

var _ api.Store = (*SQLStore)(nil)
