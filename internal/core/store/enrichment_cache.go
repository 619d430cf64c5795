package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/searchprobe/searchprobe/internal/core"
)

// GetEnrichment returns a cached reverse lookup if it is still valid.
func (s *Store) GetEnrichment(ctx context.Context, key core.EnrichmentKey) (*core.ReverseLookup, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	if key.Vendor == "" {
		return nil, errors.New("cache vendor is required")
	}

	var payload string
	row := s.DB.QueryRowContext(ctx, `
		SELECT lookup_json
		FROM enrichment_cache
		WHERE vendor = ? AND source = ? AND location = ? AND country_code = ? AND expires_at > ?
	`, key.Vendor, key.Source, key.Location, key.CountryCode, time.Now().UTC().Unix())

	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached enrichment: %w", err)
	}

	var lookup core.ReverseLookup
	if err := json.Unmarshal([]byte(payload), &lookup); err != nil {
		return nil, fmt.Errorf("decode cached enrichment: %w", err)
	}
	return &lookup, nil
}

// SetEnrichment stores a reverse lookup answer with a TTL. A non-positive TTL is a no-op.
func (s *Store) SetEnrichment(ctx context.Context, key core.EnrichmentKey, lookup *core.ReverseLookup, ttl time.Duration) error {
	ctx, err := s.ready(ctx)
	if err != nil {
		return err
	}
	if ttl <= 0 || lookup == nil {
		return nil
	}
	if key.Vendor == "" {
		return errors.New("cache vendor is required")
	}

	payload, err := json.Marshal(lookup)
	if err != nil {
		return fmt.Errorf("encode cached enrichment: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO enrichment_cache (vendor, source, location, country_code, lookup_json, rejected, checked_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vendor, source, location, country_code) DO UPDATE SET
			lookup_json = excluded.lookup_json,
			rejected = excluded.rejected,
			checked_at = excluded.checked_at,
			expires_at = excluded.expires_at
	`, key.Vendor, key.Source, key.Location, key.CountryCode, string(payload),
		boolToInt(lookup.Rejected()), now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("store cached enrichment: %w", err)
	}
	return nil
}

// PurgeExpiredEnrichments removes expired cache rows.
func (s *Store) PurgeExpiredEnrichments(ctx context.Context) (int64, error) {
	ctx, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM enrichment_cache WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge enrichment cache: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge enrichment cache: %w", err)
	}
	return affected, nil
}
