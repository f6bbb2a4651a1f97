package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"scholarforge/internal/schema"
)

// UpsertSkill inserts or replaces a skill.
func (s *SQLiteStore) UpsertSkill(ctx context.Context, sk Skill) error {
	if sk.ID == "" {
		return errors.New("upsert skill: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skills (id, name, domain, level, description) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, domain = excluded.domain,
		 level = excluded.level, description = excluded.description`,
		sk.ID, sk.Name, sk.Domain, sk.Level, sk.Description)
	if err != nil {
		return fmt.Errorf("upsert skill %s: %w", sk.ID, err)
	}
	return nil
}

// LoadSkills returns every skill ordered by id.
func (s *SQLiteStore) LoadSkills(ctx context.Context) ([]Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, domain, level, description FROM skills ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	defer rows.Close()

	var skills []Skill
	for rows.Next() {
		var sk Skill
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.Domain, &sk.Level, &sk.Description); err != nil {
			return nil, err
		}
		skills = append(skills, sk)
	}
	return skills, rows.Err()
}

// SaveCoordination persists a coordination object under the run that produced it.
func (s *SQLiteStore) SaveCoordination(ctx context.Context, runID, subjectID string, obj schema.CoordinationObject) error {
	body, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("encode coordination: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO coordination_objects (run_id, subject_id, body, created_at) VALUES (?, ?, ?, ?)`,
		runID, subjectID, string(body), s.stamp())
	if err != nil {
		return fmt.Errorf("save coordination: %w", err)
	}
	return nil
}

// LatestCoordination returns the newest coordination object for a subject.
func (s *SQLiteStore) LatestCoordination(ctx context.Context, subjectID string) (CoordinationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		rec           = CoordinationRecord{SubjectID: subjectID}
		body, created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, body, created_at FROM coordination_objects WHERE subject_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, subjectID,
	).Scan(&rec.RunID, &body, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return CoordinationRecord{}, fmt.Errorf("coordination for %s: %w", subjectID, ErrNotFound)
	}
	if err != nil {
		return CoordinationRecord{}, fmt.Errorf("latest coordination: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &rec.Object); err != nil {
		return CoordinationRecord{}, fmt.Errorf("decode coordination: %w", err)
	}
	rec.CreatedAt = parseStamp(created)
	return rec, nil
}

// SaveSessionPlan persists a plan and returns its id.
func (s *SQLiteStore) SaveSessionPlan(ctx context.Context, plan schema.SessionPlan) (string, error) {
	body, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("encode session plan: %w", err)
	}
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_plans (id, subject_id, body, created_at) VALUES (?, ?, ?, ?)`,
		id, plan.SubjectID, string(body), s.stamp())
	if err != nil {
		return "", fmt.Errorf("save session plan: %w", err)
	}
	return id, nil
}

// GetSessionPlan loads a plan by id.
func (s *SQLiteStore) GetSessionPlan(ctx context.Context, id string) (schema.SessionPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM session_plans WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return schema.SessionPlan{}, fmt.Errorf("session plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return schema.SessionPlan{}, fmt.Errorf("get session plan: %w", err)
	}
	var plan schema.SessionPlan
	if err := json.Unmarshal([]byte(body), &plan); err != nil {
		return schema.SessionPlan{}, fmt.Errorf("decode session plan: %w", err)
	}
	return plan, nil
}

// SaveDiagnostics replaces the subject's latest diagnostic state.
func (s *SQLiteStore) SaveDiagnostics(ctx context.Context, subjectID string, d schema.PriorDiagnostics) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO diagnostics (subject_id, body, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(subject_id) DO UPDATE SET body = excluded.body, created_at = excluded.created_at`,
		subjectID, string(body), s.stamp())
	if err != nil {
		return fmt.Errorf("save diagnostics: %w", err)
	}
	return nil
}

// LatestDiagnostics returns the subject's diagnostic state.
func (s *SQLiteStore) LatestDiagnostics(ctx context.Context, subjectID string) (DiagnosticsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body, created string
	err := s.db.QueryRowContext(ctx,
		`SELECT body, created_at FROM diagnostics WHERE subject_id = ?`, subjectID,
	).Scan(&body, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return DiagnosticsRecord{}, fmt.Errorf("diagnostics for %s: %w", subjectID, ErrNotFound)
	}
	if err != nil {
		return DiagnosticsRecord{}, fmt.Errorf("latest diagnostics: %w", err)
	}
	rec := DiagnosticsRecord{SubjectID: subjectID, CreatedAt: parseStamp(created)}
	if err := json.Unmarshal([]byte(body), &rec.Diagnostics); err != nil {
		return DiagnosticsRecord{}, fmt.Errorf("decode diagnostics: %w", err)
	}
	return rec, nil
}

// RecordRun journals a module run.
func (s *SQLiteStore) RecordRun(ctx context.Context, r RunRecord) error {
	errs := r.ValidationErrors
	if errs == nil {
		errs = []string{}
	}
	body, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encode validation errors: %w", err)
	}
	created := s.stamp()
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(timeLayout)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO module_runs (run_id, module, prompt_version, model_version, success, safety_decision,
		 latency_ms, prompt_tokens, completion_tokens, validation_errors, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Module, r.PromptVersion, r.ModelVersion, r.Success, r.SafetyDecision,
		r.LatencyMs, r.PromptTokens, r.CompletionTokens, string(body), created)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	return nil
}

// RecentRuns returns the newest runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, module, prompt_version, model_version, success, safety_decision, latency_ms,
		 prompt_tokens, completion_tokens, validation_errors, created_at
		 FROM module_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r             RunRecord
			errs, created string
		)
		if err := rows.Scan(&r.RunID, &r.Module, &r.PromptVersion, &r.ModelVersion, &r.Success, &r.SafetyDecision,
			&r.LatencyMs, &r.PromptTokens, &r.CompletionTokens, &errs, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(errs), &r.ValidationErrors); err != nil {
			return nil, fmt.Errorf("decode validation errors: %w", err)
		}
		r.CreatedAt = parseStamp(created)
		out = append(out, r)
	}
	return out, rows.Err()
}
