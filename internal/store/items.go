package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"scholarforge/internal/logging"
)

// CountServable counts servable items for a skill at a difficulty.
func (s *SQLiteStore) CountServable(ctx context.Context, skillID string, difficulty int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	args := append([]any{skillID, difficulty}, stringArgs(ServableStatuses)...)
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE skill_id = ? AND difficulty = ? AND status IN (`+placeholders(len(ServableStatuses))+`)`,
		args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count servable items: %w", err)
	}
	return n, nil
}

// FetchServable returns up to f.Limit servable items matching f, oldest first.
func (s *SQLiteStore) FetchServable(ctx context.Context, f Filter) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where = []string{`status IN (` + placeholders(len(ServableStatuses)) + `)`}
		args  = stringArgs(ServableStatuses)
	)
	if len(f.SkillIDs) > 0 {
		where = append(where, `skill_id IN (`+placeholders(len(f.SkillIDs))+`)`)
		args = append(args, stringArgs(f.SkillIDs)...)
	}
	if f.Difficulty > 0 {
		where = append(where, `difficulty = ?`)
		args = append(args, f.Difficulty)
	}
	if f.Domain != "" {
		where = append(where, `domain = ?`)
		args = append(args, f.Domain)
	}
	if f.Level > 0 {
		where = append(where, `level = ?`)
		args = append(args, f.Level)
	}
	if len(f.ExcludeIDs) > 0 {
		where = append(where, `id NOT IN (`+placeholders(len(f.ExcludeIDs))+`)`)
		args = append(args, stringArgs(f.ExcludeIDs)...)
	}
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch servable items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem returns one item by id regardless of status.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return item, err
}

// GetPrivateAnswer returns the answer key for an item.
func (s *SQLiteStore) GetPrivateAnswer(ctx context.Context, itemID string) (PrivateAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ans := PrivateAnswer{ItemID: itemID}
	err := s.db.QueryRowContext(ctx,
		`SELECT correct_index, correct_option FROM item_answers WHERE item_id = ?`, itemID,
	).Scan(&ans.CorrectIndex, &ans.CorrectOption)
	if errors.Is(err, sql.ErrNoRows) {
		return PrivateAnswer{}, fmt.Errorf("answer for %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return PrivateAnswer{}, fmt.Errorf("get answer: %w", err)
	}
	return ans, nil
}

// WriteApprovedDrafts writes items with status agent_approved, plus their
// answer records, in one transaction.
func (s *SQLiteStore) WriteApprovedDrafts(ctx context.Context, drafts []Draft) ([]string, error) {
	return s.WriteDrafts(ctx, drafts, StatusAgentApproved)
}

// WriteDrafts writes items and their paired answer records atomically. Items
// without an id are assigned one. It returns the ids in input order.
func (s *SQLiteStore) WriteDrafts(ctx context.Context, drafts []Draft, status string) ([]string, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin draft write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.stamp()
	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		item := d.Item
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		options, err := json.Marshal(item.Options)
		if err != nil {
			return nil, fmt.Errorf("encode options: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, skill_id, domain, level, difficulty, stem, options, explanation, status, prompt_version, run_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.SkillID, item.Domain, item.Level, item.Difficulty, item.Stem, string(options),
			item.Explanation, status, item.PromptVersion, item.RunID, now,
		); err != nil {
			return nil, fmt.Errorf("insert item: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_answers (item_id, correct_index, correct_option) VALUES (?, ?, ?)`,
			item.ID, d.Answer.CorrectIndex, d.Answer.CorrectOption,
		); err != nil {
			return nil, fmt.Errorf("insert answer: %w", err)
		}
		ids = append(ids, item.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit draft write: %w", err)
	}
	logging.Store("Wrote %d item(s) with status %s", len(ids), status)
	return ids, nil
}

// MarkApproved moves items to agent_approved in one transaction.
func (s *SQLiteStore) MarkApproved(ctx context.Context, ids []string) (int, error) {
	return s.SetStatus(ctx, ids, StatusAgentApproved)
}

// Publish moves items to live in one transaction.
func (s *SQLiteStore) Publish(ctx context.Context, ids []string) (int, error) {
	return s.SetStatus(ctx, ids, StatusLive)
}

// SetStatus updates the status of every listed item atomically. It fails, and
// changes nothing, if any id is unknown.
func (s *SQLiteStore) SetStatus(ctx context.Context, ids []string, status string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin status update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	updated := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `UPDATE items SET status = ? WHERE id = ?`, status, id)
		if err != nil {
			return 0, fmt.Errorf("update status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		updated += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit status update: %w", err)
	}
	logging.Store("Set status %s on %d item(s)", status, updated)
	return updated, nil
}

const itemColumns = `id, skill_id, domain, level, difficulty, stem, options, explanation, status, prompt_version, run_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var (
		item    Item
		options string
		created string
	)
	if err := row.Scan(&item.ID, &item.SkillID, &item.Domain, &item.Level, &item.Difficulty, &item.Stem,
		&options, &item.Explanation, &item.Status, &item.PromptVersion, &item.RunID, &created); err != nil {
		return Item{}, err
	}
	if err := json.Unmarshal([]byte(options), &item.Options); err != nil {
		return Item{}, fmt.Errorf("decode options for %s: %w", item.ID, err)
	}
	item.CreatedAt = parseStamp(created)
	return item, nil
}
