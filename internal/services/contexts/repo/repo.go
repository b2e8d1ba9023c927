// Package repo provides postgres access for context memory
package repo

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"ralcore/internal/core/memory"
	"ralcore/internal/modkit/repokit"
	"ralcore/internal/platform/store"

	perr "ralcore/internal/platform/errors"
	"ralcore/internal/services/contexts/domain"
)

type binder struct{}

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage is the persistence surface for context memory
type Storage interface {
	InsertContext(ctx context.Context, r memory.Record) error
	UpdateContext(ctx context.Context, r memory.Record) error
	ByID(ctx context.Context, id string) (memory.Record, error)
	ByIDForUpdate(ctx context.Context, id string) (memory.Record, error)
	ActiveByKey(ctx context.Context, userID string, typ memory.Type, key string) (memory.Record, bool, error)
	ListActive(ctx context.Context, f domain.ListFilter, now time.Time) ([]memory.Record, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error

	InsertVersion(ctx context.Context, v domain.Version) error
	MaxVersion(ctx context.Context, contextID string) (int, error)
	Versions(ctx context.Context, contextID string, limit int) ([]domain.Version, error)
	VersionAt(ctx context.Context, contextID string, version int) (domain.Version, error)

	DecayCandidates(ctx context.Context, olderThan time.Time, limit int) ([]memory.Record, error)
	SetDecayed(ctx context.Context, id string, confidence float64, status memory.DriftStatus) error
	SetDriftStatus(ctx context.Context, id string, status memory.DriftStatus) error
	DeleteExpiredEphemeral(ctx context.Context, now time.Time) (int, error)

	EnsureUser(ctx context.Context, externalID string) (domain.User, error)
	UserByExternalID(ctx context.Context, externalID string) (domain.User, bool, error)

	InsertSession(ctx context.Context, s domain.Session) error
	TouchSession(ctx context.Context, sessionID string, at time.Time) error
	EndSession(ctx context.Context, sessionID string, at time.Time) error
	ActiveSession(ctx context.Context, userID string) (domain.Session, bool, error)
	DeactivateSessionScoped(ctx context.Context, userID, sessionID string, at time.Time) (int, error)
}

type pg struct{ q repokit.Queryer }

const contextCols = `
	id::text, user_id::text, type, tier, key,
	value, interpretation, confidence, source, source_details,
	drift_status, expires_at, last_confirmed_at, correction_count,
	COALESCE(session_id, ''), version, is_active, created_at, updated_at`

func scanContext(r store.Row) (memory.Record, error) {
	var rec memory.Record
	var value, interp, details []byte
	err := r.Scan(
		&rec.ID, &rec.UserID, &rec.Type, &rec.Tier, &rec.Key,
		&value, &interp, &rec.Confidence, &rec.Source, &details,
		&rec.DriftStatus, &rec.ExpiresAt, &rec.LastConfirmedAt, &rec.CorrectionCount,
		&rec.SessionID, &rec.Version, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return rec, err
	}
	if len(value) > 0 {
		_ = json.Unmarshal(value, &rec.Value)
	}
	if len(interp) > 0 {
		_ = json.Unmarshal(interp, &rec.Interpretation)
	}
	if len(details) > 0 {
		_ = json.Unmarshal(details, &rec.SourceDetails)
	}
	return rec, nil
}

func mustJSON(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *pg) InsertContext(ctx context.Context, r memory.Record) error {
	const sql = `
		INSERT INTO contexts
			(id, user_id, type, tier, key, value, interpretation, confidence,
			 source, source_details, drift_status, expires_at, last_confirmed_at,
			 correction_count, session_id, version, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	_, err := s.q.Exec(ctx, sql,
		r.ID, r.UserID, r.Type, r.Tier, r.Key,
		mustJSON(r.Value), mustJSON(r.Interpretation), r.Confidence,
		r.Source, mustJSON(r.SourceDetails), r.DriftStatus,
		r.ExpiresAt, r.LastConfirmedAt, r.CorrectionCount,
		nullStr(r.SessionID), r.Version, r.IsActive, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *pg) UpdateContext(ctx context.Context, r memory.Record) error {
	const sql = `
		UPDATE contexts SET
			value = $2, interpretation = $3, confidence = $4, source = $5,
			source_details = $6, drift_status = $7, expires_at = $8,
			last_confirmed_at = $9, correction_count = $10, version = $11,
			is_active = $12, updated_at = $13
		WHERE id = $1`
	return store.ExecOne(ctx, s.q, sql,
		r.ID, mustJSON(r.Value), mustJSON(r.Interpretation), r.Confidence,
		r.Source, mustJSON(r.SourceDetails), r.DriftStatus, r.ExpiresAt,
		r.LastConfirmedAt, r.CorrectionCount, r.Version, r.IsActive, r.UpdatedAt,
	)
}

func (s *pg) ByID(ctx context.Context, id string) (memory.Record, error) {
	return store.One(ctx, s.q, scanContext,
		`SELECT `+contextCols+` FROM contexts WHERE id = $1`, id)
}

// ByIDForUpdate locks the row for the rest of the transaction; write
// paths read through here so MaxVersion and the version insert
// serialize across concurrent writers
func (s *pg) ByIDForUpdate(ctx context.Context, id string) (memory.Record, error) {
	return store.One(ctx, s.q, scanContext,
		`SELECT `+contextCols+` FROM contexts WHERE id = $1 FOR UPDATE`, id)
}

// ActiveByKey is the store write path lookup, so it locks the row
func (s *pg) ActiveByKey(ctx context.Context, userID string, typ memory.Type, key string) (memory.Record, bool, error) {
	rec, err := store.One(ctx, s.q, scanContext,
		`SELECT `+contextCols+` FROM contexts
		 WHERE user_id = $1 AND type = $2 AND key = $3 AND is_active
		 FOR UPDATE`,
		userID, typ, key)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return memory.Record{}, false, nil
		}
		return memory.Record{}, false, err
	}
	return rec, true, nil
}

func (s *pg) ListActive(ctx context.Context, f domain.ListFilter, now time.Time) ([]memory.Record, error) {
	sql := `SELECT ` + contextCols + ` FROM contexts WHERE user_id = $1 AND is_active`
	args := []any{f.UserID}
	if f.Type != "" {
		args = append(args, f.Type)
		sql += ` AND type = $2`
	}
	if f.Tier != "" {
		args = append(args, f.Tier)
		sql += ` AND tier = $` + strconv.Itoa(len(args))
	}
	if f.SessionID != "" {
		args = append(args, f.SessionID)
		sql += ` AND session_id = $` + strconv.Itoa(len(args))
	}
	if !f.IncludeExpired {
		args = append(args, now)
		sql += ` AND (expires_at IS NULL OR expires_at > $` + strconv.Itoa(len(args)) + `)`
	}
	sql += ` ORDER BY updated_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += ` LIMIT $` + strconv.Itoa(len(args))
	}
	return store.Many(ctx, s.q, scanContext, sql, args...)
}

func (s *pg) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return store.ExecOne(ctx, s.q,
		`UPDATE contexts SET is_active = false, deleted_at = $2, updated_at = $2 WHERE id = $1`,
		id, at)
}

const versionCols = `
	context_id::text, version, value, interpretation, confidence,
	previous_value, changed_by, COALESCE(change_reason, ''), created_at`

func scanVersion(r store.Row) (domain.Version, error) {
	var v domain.Version
	var value, interp, prev []byte
	err := r.Scan(
		&v.ContextID, &v.Version, &value, &interp, &v.Confidence,
		&prev, &v.ChangedBy, &v.ChangeReason, &v.CreatedAt,
	)
	if err != nil {
		return v, err
	}
	if len(value) > 0 {
		_ = json.Unmarshal(value, &v.Value)
	}
	if len(interp) > 0 {
		_ = json.Unmarshal(interp, &v.Interpretation)
	}
	if len(prev) > 0 {
		_ = json.Unmarshal(prev, &v.PreviousValue)
	}
	return v, nil
}

func (s *pg) InsertVersion(ctx context.Context, v domain.Version) error {
	const sql = `
		INSERT INTO context_versions
			(context_id, version, value, interpretation, confidence,
			 previous_value, changed_by, change_reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.q.Exec(ctx, sql,
		v.ContextID, v.Version, mustJSON(v.Value), mustJSON(v.Interpretation),
		v.Confidence, mustJSON(v.PreviousValue), v.ChangedBy,
		nullStr(v.ChangeReason), v.CreatedAt,
	)
	return err
}

func (s *pg) MaxVersion(ctx context.Context, contextID string) (int, error) {
	return store.Scalar[int](ctx, s.q,
		`SELECT COALESCE(MAX(version), 0) FROM context_versions WHERE context_id = $1`,
		contextID)
}

func (s *pg) Versions(ctx context.Context, contextID string, limit int) ([]domain.Version, error) {
	if limit <= 0 {
		limit = 50
	}
	return store.Many(ctx, s.q, scanVersion,
		`SELECT `+versionCols+` FROM context_versions
		 WHERE context_id = $1 ORDER BY version DESC LIMIT $2`,
		contextID, limit)
}

func (s *pg) VersionAt(ctx context.Context, contextID string, version int) (domain.Version, error) {
	return store.One(ctx, s.q, scanVersion,
		`SELECT `+versionCols+` FROM context_versions
		 WHERE context_id = $1 AND version = $2`,
		contextID, version)
}

func (s *pg) DecayCandidates(ctx context.Context, olderThan time.Time, limit int) ([]memory.Record, error) {
	if limit <= 0 {
		limit = 500
	}
	return store.Many(ctx, s.q, scanContext,
		`SELECT `+contextCols+` FROM contexts
		 WHERE is_active AND tier = $1 AND updated_at < $2
		 ORDER BY updated_at ASC LIMIT $3`,
		memory.TierShortTerm, olderThan, limit)
}

func (s *pg) SetDecayed(ctx context.Context, id string, confidence float64, status memory.DriftStatus) error {
	return store.ExecOne(ctx, s.q,
		`UPDATE contexts SET confidence = $2, drift_status = $3 WHERE id = $1`,
		id, confidence, status)
}

func (s *pg) SetDriftStatus(ctx context.Context, id string, status memory.DriftStatus) error {
	return store.ExecOne(ctx, s.q,
		`UPDATE contexts SET drift_status = $2 WHERE id = $1`,
		id, status)
}

func (s *pg) DeleteExpiredEphemeral(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM contexts WHERE tier = $1 AND expires_at IS NOT NULL AND expires_at <= $2`,
		memory.TierEphemeral, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

const userCols = `
	id::text, COALESCE(tenant_id::text, ''), external_id,
	COALESCE(display_name, ''), COALESCE(default_timezone, ''),
	COALESCE(default_locale, ''), COALESCE(default_country, ''),
	allow_location, allow_situational, preferences`

func scanUser(r store.Row) (domain.User, error) {
	var u domain.User
	var prefs []byte
	err := r.Scan(
		&u.ID, &u.TenantID, &u.ExternalID, &u.DisplayName,
		&u.Timezone, &u.Locale, &u.Country,
		&u.AllowLocation, &u.AllowSituational, &prefs,
	)
	if err != nil {
		return u, err
	}
	if len(prefs) > 0 {
		_ = json.Unmarshal(prefs, &u.Preferences)
	}
	return u, nil
}

func (s *pg) EnsureUser(ctx context.Context, externalID string) (domain.User, error) {
	// first write wins; the RETURNING arm covers the fresh insert and
	// the fallback select covers the conflict path
	const sql = `
		INSERT INTO users (external_id)
		VALUES ($1)
		ON CONFLICT (external_id) DO NOTHING`
	if _, err := s.q.Exec(ctx, sql, externalID); err != nil {
		return domain.User{}, err
	}
	return store.One(ctx, s.q, scanUser,
		`SELECT `+userCols+` FROM users WHERE external_id = $1`, externalID)
}

func (s *pg) UserByExternalID(ctx context.Context, externalID string) (domain.User, bool, error) {
	u, err := store.One(ctx, s.q, scanUser,
		`SELECT `+userCols+` FROM users WHERE external_id = $1`, externalID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return u, true, nil
}

const sessionCols = `
	session_id::text, user_id::text, started_at, last_activity_at, ended_at, client_info`

func scanSession(r store.Row) (domain.Session, error) {
	var s domain.Session
	var info []byte
	err := r.Scan(&s.SessionID, &s.UserID, &s.StartedAt, &s.LastActivityAt, &s.EndedAt, &info)
	if err != nil {
		return s, err
	}
	if len(info) > 0 {
		_ = json.Unmarshal(info, &s.ClientInfo)
	}
	return s, nil
}

func (s *pg) InsertSession(ctx context.Context, sess domain.Session) error {
	const sql = `
		INSERT INTO context_sessions
			(session_id, user_id, started_at, last_activity_at, client_info)
		VALUES ($1,$2,$3,$4,$5)`
	_, err := s.q.Exec(ctx, sql,
		sess.SessionID, sess.UserID, sess.StartedAt, sess.LastActivityAt,
		mustJSON(sess.ClientInfo))
	return err
}

func (s *pg) TouchSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.q.Exec(ctx,
		`UPDATE context_sessions SET last_activity_at = $2 WHERE session_id = $1 AND ended_at IS NULL`,
		sessionID, at)
	return err
}

func (s *pg) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	return store.ExecOne(ctx, s.q,
		`UPDATE context_sessions SET ended_at = $2, last_activity_at = $2
		 WHERE session_id = $1 AND ended_at IS NULL`,
		sessionID, at)
}

func (s *pg) ActiveSession(ctx context.Context, userID string) (domain.Session, bool, error) {
	sess, err := store.One(ctx, s.q, scanSession,
		`SELECT `+sessionCols+` FROM context_sessions
		 WHERE user_id = $1 AND ended_at IS NULL
		 ORDER BY started_at DESC LIMIT 1`, userID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	return sess, true, nil
}

func (s *pg) DeactivateSessionScoped(ctx context.Context, userID, sessionID string, at time.Time) (int, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE contexts SET is_active = false, updated_at = $3
		 WHERE user_id = $1 AND session_id = $2 AND tier = $4 AND is_active`,
		userID, sessionID, at, memory.TierEphemeral)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

