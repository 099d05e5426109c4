package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/eventsaas/eventsaas/internal/observability/metrics"
	"github.com/jackc/pgx/v5"
)

// queryTracer implements pgx.QueryTracer and records query latency.
type queryTracer struct {
	instruments *metrics.Instruments
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	kind string
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), kind: statementKind(data.SQL)})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	ms := float64(time.Since(qs.at).Microseconds()) / 1000
	t.instruments.DBQuery(ctx, qs.kind, ms, data.Err != nil)
}

// statementKind returns the leading SQL keyword, upper-cased, so metric
// attributes stay low-cardinality.
func statementKind(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	kind := strings.ToUpper(fields[0])
	switch kind {
	case "SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "CREATE", "DROP":
		return kind
	}
	return "OTHER"
}
