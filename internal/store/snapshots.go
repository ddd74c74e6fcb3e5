package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ncn914491/groupsync/internal/models"
)

// ErrNoSnapshot indicates no cached snapshot exists.
var ErrNoSnapshot = errors.New("no cached snapshot")

// SaveCatalog replaces the cached catalog snapshot wholesale, mirroring
// the engine's no-partial-merge contract.
func (s *Store) SaveCatalog(ctx context.Context, groups []models.Group) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog`); err != nil {
			return fmt.Errorf("failed to clear catalog: %w", err)
		}

		for i, group := range groups {
			var memberIDs *string
			if len(group.MemberIDs) > 0 {
				data, err := json.Marshal(group.MemberIDs)
				if err != nil {
					return fmt.Errorf("failed to marshal member ids: %w", err)
				}
				str := string(data)
				memberIDs = &str
			}

			isMember := 0
			if group.IsMember {
				isMember = 1
			}

			_, err := tx.ExecContext(ctx, `
				INSERT INTO catalog (group_id, name, description, is_member, member_count, member_ids, position)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, group.ID, group.Name, group.Description, isMember, group.MemberCount, memberIDs, i)
			if err != nil {
				return fmt.Errorf("failed to insert group: %w", err)
			}
		}
		return nil
	})
}

// LoadCatalog returns the cached catalog snapshot in its original order.
func (s *Store) LoadCatalog(ctx context.Context) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, name, description, is_member, member_count, member_ids
		FROM catalog
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var group models.Group
		var isMember int
		var memberIDs sql.NullString

		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &isMember, &group.MemberCount, &memberIDs); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		group.IsMember = isMember != 0
		if memberIDs.Valid {
			if err := json.Unmarshal([]byte(memberIDs.String), &group.MemberIDs); err != nil {
				return nil, fmt.Errorf("failed to unmarshal member ids: %w", err)
			}
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog: %w", err)
	}

	if groups == nil {
		return nil, ErrNoSnapshot
	}
	return groups, nil
}

// SaveFeed replaces the cached feed snapshot for a group. Pending entries
// are skipped: only confirmed server messages are persisted.
func (s *Store) SaveFeed(ctx context.Context, groupID string, messages []models.Message) error {
	return s.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM feed WHERE group_id = ?`, groupID); err != nil {
			return fmt.Errorf("failed to clear feed: %w", err)
		}

		position := 0
		for _, message := range messages {
			if message.Pending {
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO feed (group_id, message_id, content, author_id, author_name, created_at, position)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
				groupID,
				message.ID,
				message.Content,
				message.Author.ID,
				message.Author.DisplayName,
				message.CreatedAt.UTC().Format(time.RFC3339Nano),
				position,
			)
			if err != nil {
				return fmt.Errorf("failed to insert message: %w", err)
			}
			position++
		}
		return nil
	})
}

// LoadFeed returns the cached feed snapshot for a group in feed order.
func (s *Store) LoadFeed(ctx context.Context, groupID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, content, author_id, author_name, created_at
		FROM feed
		WHERE group_id = ?
		ORDER BY position
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var message models.Message
		var createdAt string

		if err := rows.Scan(&message.ID, &message.Content, &message.Author.ID, &message.Author.DisplayName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		message.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse message time: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed: %w", err)
	}

	if messages == nil {
		return nil, ErrNoSnapshot
	}
	return messages, nil
}

// DeleteFeed drops the cached feed for a group (e.g. after leaving it).
func (s *Store) DeleteFeed(ctx context.Context, groupID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM feed WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}
