package tasks

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voicedesk/pkg/utils"
)

// NOTE: This repository assumes the following tables exist:
// - tasks
// - audio_files
//
// Optional text columns are NOT NULL DEFAULT '' and epoch-millisecond columns
// NOT NULL DEFAULT 0, so rows scan directly into the model. call_successful
// and audio_file_id are genuinely nullable.
//
// An index on tasks(agent_call_id) backs every vendor-state join; a partial
// index on (type, status) WHERE status = 'in_progress' backs the poll
// supervisor's membership query.

const taskColumns = `
id, tenant_id, created_by_member_id, assigned_member_id,
type, status, priority,
from_address, to_address, subject, content, metadata,
agent_call_id, telephony_call_id,
call_status, call_direction, call_duration, call_start_time, call_end_time,
call_end_reason, call_transcript, transcript_json,
call_summary, call_sentiment, call_successful, call_cost_cents,
call_recording_url, audio_file_id,
leads_company, leads_domain, leads_address, leads_industry,
leads_hours_of_operation, leads_interest_level, leads_pain_points,
leads_next_steps, leads_notes,
research_company_overview, research_pain_points, research_key_people,
research_sales_opportunities,
submission_type, scheduled_at, started_at, completed_at,
created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	var successful sql.NullBool
	var audioFileID sql.NullString
	err := row.Scan(
		&t.ID, &t.TenantID, &t.CreatedByMemberID, &t.AssignedMemberID,
		&t.Type, &t.Status, &t.Priority,
		&t.FromAddress, &t.ToAddress, &t.Subject, &t.Content, &t.Metadata,
		&t.AgentCallID, &t.TelephonyCallID,
		&t.CallStatus, &t.CallDirection, &t.CallDurationSeconds, &t.CallStartMs, &t.CallEndMs,
		&t.CallEndReason, &t.CallTranscript, &t.TranscriptJSON,
		&t.CallSummary, &t.CallSentiment, &successful, &t.CallCostCents,
		&t.CallRecordingURL, &audioFileID,
		&t.LeadsCompany, &t.LeadsDomain, &t.LeadsAddress, &t.LeadsIndustry,
		&t.LeadsHoursOfOperation, &t.LeadsInterestLevel, &t.LeadsPainPoints,
		&t.LeadsNextSteps, &t.LeadsNotes,
		&t.ResearchCompanyOverview, &t.ResearchPainPoints, &t.ResearchKeyPeople,
		&t.ResearchSalesOpportunities,
		&t.SubmissionType, &t.ScheduledAt, &t.StartedAt, &t.CompletedAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return Task{}, err
	}
	if successful.Valid {
		v := successful.Bool
		t.CallSuccessful = &v
	}
	if audioFileID.Valid {
		t.AudioFileID = audioFileID.String
	}
	return t, nil
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertTask(ctx context.Context, db executor, t Task) error {
	const q = `
INSERT INTO tasks (` + taskColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,
        $20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36,
        $37,$38,$39,$40,$41,$42,$43,$44,$45,$46,$47)
`
	var successful sql.NullBool
	if t.CallSuccessful != nil {
		successful = sql.NullBool{Bool: *t.CallSuccessful, Valid: true}
	}
	var audioFileID sql.NullString
	if t.AudioFileID != "" {
		audioFileID = sql.NullString{String: t.AudioFileID, Valid: true}
	}
	_, err := db.ExecContext(ctx, q,
		t.ID, t.TenantID, t.CreatedByMemberID, t.AssignedMemberID,
		t.Type, t.Status, t.Priority,
		t.FromAddress, t.ToAddress, t.Subject, t.Content, t.Metadata,
		t.AgentCallID, t.TelephonyCallID,
		t.CallStatus, t.CallDirection, t.CallDurationSeconds, t.CallStartMs, t.CallEndMs,
		t.CallEndReason, t.CallTranscript, t.TranscriptJSON,
		t.CallSummary, t.CallSentiment, successful, t.CallCostCents,
		t.CallRecordingURL, audioFileID,
		t.LeadsCompany, t.LeadsDomain, t.LeadsAddress, t.LeadsIndustry,
		t.LeadsHoursOfOperation, t.LeadsInterestLevel, t.LeadsPainPoints,
		t.LeadsNextSteps, t.LeadsNotes,
		t.ResearchCompanyOverview, t.ResearchPainPoints, t.ResearchKeyPeople,
		t.ResearchSalesOpportunities,
		t.SubmissionType, t.ScheduledAt, t.StartedAt, t.CompletedAt,
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func findTaskByAgentCallID(ctx context.Context, db executor, agentCallID string) (Task, error) {
	const q = `
SELECT ` + taskColumns + `
FROM tasks
WHERE agent_call_id = $1
LIMIT 1
`
	t, err := scanTask(db.QueryRowContext(ctx, q, agentCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

func findTaskByID(ctx context.Context, db executor, id string) (Task, error) {
	const q = `
SELECT ` + taskColumns + `
FROM tasks
WHERE id = $1
`
	t, err := scanTask(db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

// applyCallUpdate writes the full normalized field set unconditionally.
// completed_at is kept stable via COALESCE so a terminal call re-polled
// arbitrarily many times never moves its completion timestamp.
func applyCallUpdate(ctx context.Context, db executor, taskID string, u CallUpdate, now time.Time) error {
	const q = `
UPDATE tasks SET
  status = $2,
  call_status = $3,
  call_duration = $4,
  call_start_time = $5,
  call_end_time = $6,
  call_end_reason = $7,
  call_transcript = $8,
  transcript_json = $9,
  call_summary = $10,
  call_sentiment = $11,
  call_successful = $12,
  call_cost_cents = $13,
  call_recording_url = $14,
  metadata = $15,
  completed_at = CASE WHEN $16::bigint > 0 THEN COALESCE(NULLIF(completed_at, 0), $16) ELSE completed_at END,
  updated_at = $17
WHERE id = $1
`
	var successful sql.NullBool
	if u.Successful != nil {
		successful = sql.NullBool{Bool: *u.Successful, Valid: true}
	}
	_, err := db.ExecContext(ctx, q,
		taskID,
		u.Status, u.CallStatus,
		u.DurationSeconds, u.StartMs, u.EndMs, u.EndReason,
		u.Transcript, u.TranscriptJSON,
		u.Summary, u.Sentiment, successful, u.CostCents, u.RecordingURL,
		u.Metadata,
		u.CompletedAtMs,
		now,
	)
	return err
}

// listInProgressCalls is the poll supervisor's membership query: call tasks
// still in_progress that carry a vendor call id.
func listInProgressCalls(ctx context.Context, db executor) ([]Task, error) {
	const q = `
SELECT ` + taskColumns + `
FROM tasks
WHERE type = 'call' AND status = 'in_progress' AND agent_call_id <> ''
ORDER BY created_at
`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// listStaleInProgressCalls finds call tasks stuck in_progress since before
// the cutoff; the reconciliation sweep re-checks these against vendor truth.
func listStaleInProgressCalls(ctx context.Context, db executor, cutoff time.Time) ([]Task, error) {
	const q = `
SELECT ` + taskColumns + `
FROM tasks
WHERE type = 'call' AND status = 'in_progress' AND agent_call_id <> ''
  AND updated_at < $1
ORDER BY updated_at
`
	rows, err := db.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func listTasksByTenant(ctx context.Context, db executor, tenantID string, limit int) ([]Task, error) {
	const q = `
SELECT ` + taskColumns + `
FROM tasks
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := db.QueryContext(ctx, q, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func insertAudioFile(ctx context.Context, db executor, f AudioFile) error {
	// Path is unique; a repeated store of the same call id overwrites the
	// descriptor rather than duplicating it.
	const q = `
INSERT INTO audio_files (id, path, url, content_type, size_bytes, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (path) DO UPDATE
SET url = EXCLUDED.url, content_type = EXCLUDED.content_type, size_bytes = EXCLUDED.size_bytes
`
	_, err := db.ExecContext(ctx, q, f.ID, f.Path, f.URL, f.ContentType, f.SizeBytes, f.CreatedAt)
	return err
}

// errAudioNotLinked means the link UPDATE matched no row: the mirror row for
// the call is missing, or another fetch linked its recording first.
var errAudioNotLinked = errors.New("tasks: no task row took the audio link")

// linkAudioToTask sets the task's audio link only when none exists yet
// (first successful retrieval wins). A zero-row update is reported as
// errAudioNotLinked rather than committed silently.
func linkAudioToTask(ctx context.Context, db executor, agentCallID, audioFileID string, now time.Time) error {
	const q = `
UPDATE tasks SET audio_file_id = $2, updated_at = $3
WHERE agent_call_id = $1 AND audio_file_id IS NULL
`
	res, err := db.ExecContext(ctx, q, agentCallID, audioFileID, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errAudioNotLinked
	}
	return nil
}

// findAudioByAgentCallID resolves the linked recording for a call, if any.
func findAudioByAgentCallID(ctx context.Context, db executor, agentCallID string) (AudioFile, bool, error) {
	const q = `
SELECT f.id, f.path, f.url, f.content_type, f.size_bytes, f.created_at
FROM tasks t
JOIN audio_files f ON f.id = t.audio_file_id
WHERE t.agent_call_id = $1
LIMIT 1
`
	var f AudioFile
	err := db.QueryRowContext(ctx, q, agentCallID).Scan(
		&f.ID, &f.Path, &f.URL, &f.ContentType, &f.SizeBytes, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AudioFile{}, false, nil
		}
		return AudioFile{}, false, err
	}
	return f, true, nil
}

// PostgresStore is the production Store over database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) InsertTask(ctx context.Context, t Task) error {
	return insertTask(ctx, s.db, t)
}

func (s *PostgresStore) FindTaskByID(ctx context.Context, id string) (Task, error) {
	return findTaskByID(ctx, s.db, id)
}

func (s *PostgresStore) FindTaskByAgentCallID(ctx context.Context, agentCallID string) (Task, error) {
	return findTaskByAgentCallID(ctx, s.db, agentCallID)
}

func (s *PostgresStore) ApplyCallUpdate(ctx context.Context, taskID string, u CallUpdate, now time.Time) error {
	return applyCallUpdate(ctx, s.db, taskID, u, now)
}

func (s *PostgresStore) ListTasksByTenant(ctx context.Context, tenantID string, limit int) ([]Task, error) {
	return listTasksByTenant(ctx, s.db, tenantID, limit)
}

func (s *PostgresStore) ListInProgressCalls(ctx context.Context) ([]Task, error) {
	return listInProgressCalls(ctx, s.db)
}

func (s *PostgresStore) ListStaleInProgressCalls(ctx context.Context, cutoff time.Time) ([]Task, error) {
	return listStaleInProgressCalls(ctx, s.db, cutoff)
}

// SaveAudio writes the descriptor and the task link in one transaction; an
// unlinked descriptor rolls back with the failed link.
func (s *PostgresStore) SaveAudio(ctx context.Context, agentCallID string, f AudioFile, now time.Time) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertAudioFile(ctx, tx, f); err != nil {
			return err
		}
		return linkAudioToTask(ctx, tx, agentCallID, f.ID, now)
	})
}

func (s *PostgresStore) FindAudioByAgentCallID(ctx context.Context, agentCallID string) (AudioFile, bool, error) {
	return findAudioByAgentCallID(ctx, s.db, agentCallID)
}

var _ Store = (*PostgresStore)(nil)
