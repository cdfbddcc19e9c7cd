package telemetry

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	dbSystemKey    = "db.system"
	dbSystemSQLite = "sqlite"
	dbTableKey     = "db.table"
	dbOperationKey = "db.operation"
)

// GORMTracingPlugin traces the snapshot cache's database operations. Spans
// only open when the statement context carries one, so cache access outside a
// traced request stays free.
func GORMTracingPlugin() gorm.Plugin {
	return &gormTracing{tracer: otel.Tracer("gorm")}
}

type gormTracing struct {
	tracer trace.Tracer
}

func (p *gormTracing) Name() string { return "telemetry:tracing" }

func (p *gormTracing) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("telemetry:before_query", p.beforeQuery); err != nil {
		return fmt.Errorf("register before_query callback: %w", err)
	}
	if err := db.Callback().Create().Before("gorm:create").Register("telemetry:before_create", p.beforeCreate); err != nil {
		return fmt.Errorf("register before_create callback: %w", err)
	}
	if err := db.Callback().Update().Before("gorm:update").Register("telemetry:before_update", p.beforeUpdate); err != nil {
		return fmt.Errorf("register before_update callback: %w", err)
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("telemetry:before_delete", p.beforeDelete); err != nil {
		return fmt.Errorf("register before_delete callback: %w", err)
	}

	if err := db.Callback().Query().After("gorm:query").Register("telemetry:after_query", p.endSpan); err != nil {
		return fmt.Errorf("register after_query callback: %w", err)
	}
	if err := db.Callback().Create().After("gorm:create").Register("telemetry:after_create", p.endSpan); err != nil {
		return fmt.Errorf("register after_create callback: %w", err)
	}
	if err := db.Callback().Update().After("gorm:update").Register("telemetry:after_update", p.endSpan); err != nil {
		return fmt.Errorf("register after_update callback: %w", err)
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("telemetry:after_delete", p.endSpan); err != nil {
		return fmt.Errorf("register after_delete callback: %w", err)
	}
	return nil
}

func (p *gormTracing) beforeQuery(db *gorm.DB)  { p.startSpan(db, "SELECT") }
func (p *gormTracing) beforeCreate(db *gorm.DB) { p.startSpan(db, "INSERT") }
func (p *gormTracing) beforeUpdate(db *gorm.DB) { p.startSpan(db, "UPDATE") }
func (p *gormTracing) beforeDelete(db *gorm.DB) { p.startSpan(db, "DELETE") }

func (p *gormTracing) startSpan(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	table := db.Statement.Table
	if table == "" {
		table = "unknown"
	}

	_, span := p.tracer.Start(ctx, "cache."+operation,
		trace.WithAttributes(
			attribute.String(dbSystemKey, dbSystemSQLite),
			attribute.String(dbTableKey, table),
			attribute.String(dbOperationKey, operation),
		),
	)
	db.InstanceSet("otel:span", span)
	db.InstanceSet("otel:startTime", time.Now())
}

func (p *gormTracing) endSpan(db *gorm.DB) {
	raw, ok := db.InstanceGet("otel:span")
	if !ok {
		return
	}
	span, ok := raw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if startRaw, ok := db.InstanceGet("otel:startTime"); ok {
		if start, ok := startRaw.(time.Time); ok {
			span.SetAttributes(attribute.Int64("db.duration_ms", time.Since(start).Milliseconds()))
		}
	}
	if db.RowsAffected > 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
