package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/autobank/internal/common"
	"github.com/Veraticus/autobank/internal/model"
)

// LogAudit appends an entry to the audit trail.
func (s *SQLiteStorage) LogAudit(ctx context.Context, entry *model.AuditEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}

	details := entry.Details
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, event_type, actor, resource_type, resource_id, details, ip_address, user_agent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Timestamp, entry.EventType, entry.Actor,
		nullable(entry.ResourceType), nullable(entry.ResourceID),
		string(details), nullable(entry.IPAddress), nullable(entry.UserAgent))
	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", err)
	}

	return nil
}

// QueryAudit returns recent audit entries, newest first.
func (s *SQLiteStorage) QueryAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, auditSelect+` ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.AuditEntry
	for rows.Next() {
		entry, scanErr := scanAuditEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", scanErr)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit log: %w", err)
	}

	return entries, nil
}

// GetAuditEntry returns a single audit entry by id.
func (s *SQLiteStorage) GetAuditEntry(ctx context.Context, id string) (*model.AuditEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, auditSelect+` WHERE id = ?`, id)

	entry, err := scanAuditEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit entry %s: %w", id, common.ErrNotFound)
		}
		return nil, err
	}
	return entry, nil
}

const auditSelect = `
	SELECT id, timestamp, event_type, actor, resource_type, resource_id, details, ip_address, user_agent
	FROM audit_log`

func scanAuditEntry(row rowScanner) (*model.AuditEntry, error) {
	var entry model.AuditEntry
	var resourceType, resourceID, ipAddress, userAgent sql.NullString
	var details string

	err := row.Scan(&entry.ID, &entry.Timestamp, &entry.EventType, &entry.Actor,
		&resourceType, &resourceID, &details, &ipAddress, &userAgent)
	if err != nil {
		return nil, err
	}

	entry.ResourceType = resourceType.String
	entry.ResourceID = resourceID.String
	entry.IPAddress = ipAddress.String
	entry.UserAgent = userAgent.String
	entry.Details = json.RawMessage(details)

	return &entry, nil
}
