package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertProposalParams bundles the fields required to record a candidate
// preference proposal inferred from recent user turns. A zero
// CausalityMessageID or AssistantMessageID is stored as NULL.
type InsertProposalParams struct {
	ConversationID     int64
	Key                string
	Value              string
	ProposalText       string
	Rationale          *string
	CausalityMessageID int64
	AssistantMessageID int64
}

func (s *Store) InsertProposal(ctx context.Context, p InsertProposalParams) (int64, error) {
	var causality, assistant any
	if p.CausalityMessageID != 0 {
		causality = p.CausalityMessageID
	}
	if p.AssistantMessageID != 0 {
		assistant = p.AssistantMessageID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO preference_proposals (
			conversation_id, key, value, proposal_text, rationale,
			status, causality_message_id, assistant_message_id
		) VALUES (?, ?, ?, ?, ?, 'pending', ?, ?)
	`, p.ConversationID, p.Key, p.Value, p.ProposalText, p.Rationale, causality, assistant)
	if err != nil {
		return 0, fmt.Errorf("insert proposal: %w", err)
	}
	return res.LastInsertId()
}

func scanProposal(row *sql.Row) (*PreferenceProposal, error) {
	var p PreferenceProposal
	var status string
	err := row.Scan(&p.ID, &p.ConversationID, &p.Key, &p.Value, &p.ProposalText, &p.Rationale,
		&status, &p.CreatedAt, &p.DecidedAt, &p.CausalityMessageID, &p.AssistantMessageID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan proposal: %w", err)
	}
	p.Status = ProposalStatus(status)
	return &p, nil
}

// GetPendingProposal returns the most recent pending proposal for a
// conversation, or nil if none is pending. The at-most-one-pending rule
// relies on this read happening before any insert in the same request.
func (s *Store) GetPendingProposal(ctx context.Context, conversationID int64) (*PreferenceProposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, key, value, proposal_text, rationale,
		       status, created_at, decided_at, causality_message_id, assistant_message_id
		FROM preference_proposals
		WHERE conversation_id = ? AND status = 'pending'
		ORDER BY id DESC
		LIMIT 1
	`, conversationID)
	return scanProposal(row)
}

func (s *Store) GetProposal(ctx context.Context, id int64) (*PreferenceProposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, key, value, proposal_text, rationale,
		       status, created_at, decided_at, causality_message_id, assistant_message_id
		FROM preference_proposals
		WHERE id = ?
	`, id)
	return scanProposal(row)
}

// ListProposals returns proposals for a conversation filtered by status, newest first.
func (s *Store) ListProposals(ctx context.Context, conversationID int64, status string) ([]PreferenceProposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, key, value, proposal_text, rationale,
		       status, created_at, decided_at, causality_message_id, assistant_message_id
		FROM preference_proposals
		WHERE conversation_id = ? AND status = ?
		ORDER BY id DESC
	`, conversationID, status)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []PreferenceProposal
	for rows.Next() {
		var p PreferenceProposal
		var st string
		if err := rows.Scan(&p.ID, &p.ConversationID, &p.Key, &p.Value, &p.ProposalText, &p.Rationale,
			&st, &p.CreatedAt, &p.DecidedAt, &p.CausalityMessageID, &p.AssistantMessageID); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		p.Status = ProposalStatus(st)
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProposalStatus sets a proposal's terminal status and decided_at timestamp.
func (s *Store) UpdateProposalStatus(ctx context.Context, id int64, status ProposalStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE preference_proposals
		SET status = ?, decided_at = strftime('%Y-%m-%dT%H:%M:%S', 'now')
		WHERE id = ?
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("update proposal status: %w", err)
	}
	return nil
}
