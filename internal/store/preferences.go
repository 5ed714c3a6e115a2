package store

import (
	"context"
	"database/sql"
	"fmt"
)

// LatestPreferenceReset returns the most recent reset for a scope, or nil if
// the scope has never been reset.
func (s *Store) LatestPreferenceReset(ctx context.Context, scope string) (*PreferenceReset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scope, created_at, reset_event_id
		FROM preference_resets
		WHERE scope = ?
		ORDER BY id DESC
		LIMIT 1
	`, scope)
	var r PreferenceReset
	if err := row.Scan(&r.ID, &r.Scope, &r.CreatedAt, &r.ResetEventID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest reset: %w", err)
	}
	return &r, nil
}

// InsertPreferenceReset records a new cutoff for the scope.
func (s *Store) InsertPreferenceReset(ctx context.Context, scope string, resetEventID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO preference_resets (scope, reset_event_id) VALUES (?, ?)", scope, resetEventID)
	if err != nil {
		return 0, fmt.Errorf("insert preference reset: %w", err)
	}
	return res.LastInsertId()
}

// ListPreferences returns every preference ever recorded for a scope,
// ordered by id. It is not reset-aware; callers that need the effective
// view must apply the reset cutoff themselves.
func (s *Store) ListPreferences(ctx context.Context, scope string) ([]Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, value, scope, created_at, approved_event_id, source_proposal_id
		FROM preferences
		WHERE scope = ?
		ORDER BY id
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(&p.ID, &p.Key, &p.Value, &p.Scope, &p.CreatedAt, &p.ApprovedEventID, &p.SourceProposalID); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPreferencesSince returns preferences for a scope with created_at
// strictly greater than the given cutoff, ordered by id. Pass an empty
// cutoff to mean "no reset yet" (returns everything).
func (s *Store) ListPreferencesSince(ctx context.Context, scope, cutoff string) ([]Preference, error) {
	var rows *sql.Rows
	var err error
	if cutoff == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, key, value, scope, created_at, approved_event_id, source_proposal_id
			FROM preferences
			WHERE scope = ?
			ORDER BY id
		`, scope)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, key, value, scope, created_at, approved_event_id, source_proposal_id
			FROM preferences
			WHERE scope = ? AND created_at > ?
			ORDER BY id
		`, scope, cutoff)
	}
	if err != nil {
		return nil, fmt.Errorf("list preferences since: %w", err)
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(&p.ID, &p.Key, &p.Value, &p.Scope, &p.CreatedAt, &p.ApprovedEventID, &p.SourceProposalID); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertPreference records an approved default, overriding earlier entries
// for the same key (last-id-wins is computed by the reader, not enforced here).
func (s *Store) InsertPreference(ctx context.Context, key, value, scope string, approvedEventID, sourceProposalID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, scope, approved_event_id, source_proposal_id)
		VALUES (?, ?, ?, ?, ?)
	`, key, value, scope, approvedEventID, sourceProposalID)
	if err != nil {
		return 0, fmt.Errorf("insert preference: %w", err)
	}
	return res.LastInsertId()
}
