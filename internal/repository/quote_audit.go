package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"QuotePulse/internal/domain/models"
	pkgch "QuotePulse/pkg/clickhouse"
	applogger "QuotePulse/pkg/logger"
)

// CHAuditSink records resolved quotes and their fallback paths in ClickHouse.
type CHAuditSink struct {
	db *sql.DB
	ch *pkgch.Client
	l  *applogger.Logger
}

// NewCHAuditSink creates a ClickHouse-backed audit sink.
func NewCHAuditSink(ch *pkgch.Client) *CHAuditSink {
	return &CHAuditSink{db: ch.DB(), ch: ch}
}

// SetLogger injects a structured logger.
func (s *CHAuditSink) SetLogger(l *applogger.Logger) { s.l = l }

// Init creates the audit schema if missing.
func (s *CHAuditSink) Init(ctx context.Context) error {
	stmts := []string{
		"CREATE DATABASE IF NOT EXISTS quotepulse",
		`CREATE TABLE IF NOT EXISTS quotepulse.quote_resolutions (
			ts DateTime,
			symbol String,
			price Float64,
			source String,
			session String,
			provider String,
			attempts UInt8,
			fallback_path String,
			stale UInt8,
			warnings String
		) ENGINE=MergeTree ORDER BY (symbol, ts)`,
	}
	return s.ch.InitSchema(ctx, stmts)
}

// RecordResolution appends one resolved quote to the audit table.
func (s *CHAuditSink) RecordResolution(ctx context.Context, q *models.Quote, attempts int, fallbackPath []string) error {
	const query = `INSERT INTO quotepulse.quote_resolutions
		(ts, symbol, price, source, session, provider, attempts, fallback_path, stale, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stale := uint8(0)
	if q.IsStale {
		stale = 1
	}
	_, err := s.db.ExecContext(ctx, query,
		time.Now(),
		q.Symbol,
		q.PriceValue(),
		string(q.Source),
		string(q.Session),
		q.ProviderUsed,
		uint8(attempts),
		strings.Join(fallbackPath, ">"),
		stale,
		strings.Join(q.Warnings, "; "),
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse audit insert error",
				applogger.String("symbol", q.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("record resolution: %w", err)
	}
	return nil
}

// Health pings the database.
func (s *CHAuditSink) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the client owns the connection.
func (s *CHAuditSink) Close() error {
	return nil
}
