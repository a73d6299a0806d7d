package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"PollPulse/internal/domain/models"
	domrepo "PollPulse/internal/domain/repository"
	applogger "PollPulse/pkg/logger"
)

// ClickHousePollStore implements PollStore backed by ClickHouse.
type ClickHousePollStore struct {
	db          *sql.DB
	pollTable   string
	regionTable string
	l           *applogger.Logger
}

// NewClickHousePollStore creates a poll store over the given tables.
func NewClickHousePollStore(db *sql.DB, pollTable, regionTable string) *ClickHousePollStore {
	return &ClickHousePollStore{db: db, pollTable: pollTable, regionTable: regionTable}
}

// SetLogger injects a structured logger.
func (s *ClickHousePollStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHousePollStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHousePollStore) GetPolls(ctx context.Context, periodID string, candidates []string, from, to time.Time) ([]models.PollRecord, error) {
	start := time.Now()

	var sb strings.Builder
	fmt.Fprintf(&sb, `
        SELECT candidate, region, obs_date, pct_estimate, pollster_quality, pollster_influence
        FROM %s
        WHERE period_id = ? AND obs_date >= ? AND obs_date <= ?`, s.pollTable)
	args := []interface{}{periodID, from, to}
	if len(candidates) > 0 {
		sb.WriteString(" AND candidate IN (" + placeholders(len(candidates)) + ")")
		for _, c := range candidates {
			args = append(args, c)
		}
	}
	sb.WriteString(" ORDER BY obs_date ASC")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		s.logError("get_polls query error", periodID, err)
		return nil, fmt.Errorf("get polls: %w", err)
	}
	defer rows.Close()

	out := make([]models.PollRecord, 0, 1024)
	for rows.Next() {
		var p models.PollRecord
		if err := rows.Scan(&p.Candidate, &p.Region, &p.ObservationDate, &p.PctEstimate, &p.PollsterQuality, &p.PollsterInfluence); err != nil {
			s.logError("get_polls scan error", periodID, err)
			return nil, fmt.Errorf("scan poll: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.logError("get_polls rows error", periodID, err)
		return nil, fmt.Errorf("rows: %w", err)
	}

	if s.l != nil {
		s.l.Info("clickhouse get_polls ok",
			applogger.String("period", periodID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHousePollStore) GetRegions(ctx context.Context, periodID string) (map[string]models.RegionMetadata, error) {
	q := fmt.Sprintf(`
        SELECT region_id, outcome_units, historical_lean, is_swing
        FROM %s
        WHERE period_id = ?`, s.regionTable)

	rows, err := s.db.QueryContext(ctx, q, periodID)
	if err != nil {
		s.logError("get_regions query error", periodID, err)
		return nil, fmt.Errorf("get regions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.RegionMetadata)
	for rows.Next() {
		var r models.RegionMetadata
		var swing uint8
		if err := rows.Scan(&r.RegionID, &r.OutcomeUnits, &r.HistoricalLean, &swing); err != nil {
			s.logError("get_regions scan error", periodID, err)
			return nil, fmt.Errorf("scan region: %w", err)
		}
		r.IsSwing = swing != 0
		out[r.RegionID] = r
	}
	if err := rows.Err(); err != nil {
		s.logError("get_regions rows error", periodID, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHousePollStore) StorePolls(ctx context.Context, periodID string, polls []models.PollRecord) error {
	if len(polls) == 0 {
		return nil
	}
	// Multi-row VALUES insert, chunked to bound statement size.
	const chunkSize = 2000
	for start := 0; start < len(polls); start += chunkSize {
		end := start + chunkSize
		if end > len(polls) {
			end = len(polls)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, p := range polls[start:end] {
			if p.Candidate == "" || p.Region == "" || p.ObservationDate.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				periodID,
				p.Candidate,
				p.Region,
				p.ObservationDate,
				p.PctEstimate,
				p.PollsterQuality,
				p.PollsterInfluence,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (period_id, candidate, region, obs_date, pct_estimate, pollster_quality, pollster_influence) VALUES %s",
			s.pollTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logError("store_polls insert error", periodID, err)
			return fmt.Errorf("store polls: %w", err)
		}
	}
	return nil
}

func (s *ClickHousePollStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHousePollStore) Close() error {
	return nil // Managed by pkg
}

func (s *ClickHousePollStore) logError(msg, periodID string, err error) {
	if s.l != nil {
		s.l.Error(msg, applogger.String("period", periodID), applogger.Error(err))
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var _ domrepo.PollStore = (*ClickHousePollStore)(nil)
