package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// DefaultGreptimeTable receives run results unless overridden.
const DefaultGreptimeTable = "sweep_results"

const (
	defaultGreptimePort = 4001
	greptimeTimeout     = 10 * time.Second
	paramColumnPrefix   = "param_"
)

// greptimeClient is the part of the ingester client the writer needs.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter stores run results in GreptimeDB, one row per run with
// the point parameters as tag columns.
type GreptimeDBWriter struct {
	client greptimeClient
	table  string
	log    *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port").
func NewGreptimeDBWriter(endpoint, database, tableName string) (*GreptimeDBWriter, error) {
	host, port := endpoint, defaultGreptimePort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid GreptimeDB port %q: %w", p, err)
		}
		host, port = h, n
	}
	if database == "" {
		database = "public"
	}
	if tableName == "" {
		tableName = DefaultGreptimeTable
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create GreptimeDB client: %w", err)
	}
	return &GreptimeDBWriter{client: client, table: tableName, log: slog.Default()}, nil
}

// WriteResult inserts a single result.
func (w *GreptimeDBWriter) WriteResult(r RunResult) error {
	return w.WriteResults([]RunResult{r})
}

// WriteResults inserts multiple results in one request.
func (w *GreptimeDBWriter) WriteResults(rows []RunResult) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.buildTable(rows)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), greptimeTimeout)
	defer cancel()
	if _, err := w.client.Write(ctx, tbl); err != nil {
		w.logger().Warn("[GreptimeDBWriter] write failed", "table", w.table, "err", err)
		return err
	}
	w.logger().Debug("[GreptimeDBWriter] wrote rows", "table", w.table, "rows", len(rows))
	return nil
}

func (w *GreptimeDBWriter) logger() *slog.Logger {
	if w.log == nil {
		return slog.Default()
	}
	return w.log
}

func (w *GreptimeDBWriter) buildTable(rows []RunResult) (*table.Table, error) {
	name := w.table
	if name == "" {
		name = DefaultGreptimeTable
	}
	tbl, err := table.New(name)
	if err != nil {
		return nil, err
	}
	points := make([]Point, len(rows))
	for i, r := range rows {
		points[i] = r.Point
	}
	params := ParamNames(points)

	for _, tag := range []string{"sweep_id", "sweep", "point", "status"} {
		if err := tbl.AddTagColumn(tag, types.STRING); err != nil {
			return nil, err
		}
	}
	for _, p := range params {
		if err := tbl.AddTagColumn(paramColumnPrefix+p, types.STRING); err != nil {
			return nil, err
		}
	}
	fields := []struct {
		name string
		typ  types.ColumnType
	}{
		{"run_index", types.INT64},
		{"throughput_mbps", types.FLOAT64},
		{"mean_latency_ms", types.FLOAT64},
		{"latency_p50_ms", types.FLOAT64},
		{"latency_p95_ms", types.FLOAT64},
		{"loss_rate_pct", types.FLOAT64},
		{"pdr_pct", types.FLOAT64},
		{"tx_count", types.INT64},
		{"rx_count", types.INT64},
		{"pairs", types.INT64},
		{"skipped_lines", types.INT64},
		{"duration_s", types.FLOAT64},
		{"error", types.STRING},
	}
	for _, f := range fields {
		if err := tbl.AddFieldColumn(f.name, f.typ); err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}

	for _, r := range rows {
		vals := []any{r.SweepID, r.Sweep, r.Point.String(), string(r.Status)}
		for _, p := range params {
			v, _ := r.Point.Get(p)
			vals = append(vals, v)
		}
		vals = append(vals,
			int64(r.Index),
			r.ThroughputMbps,
			r.MeanLatencyMs,
			r.LatencyP50Ms,
			r.LatencyP95Ms,
			r.LossRatePct,
			r.PDRPct,
			int64(r.TxCount),
			int64(r.RxCount),
			int64(r.Pairs),
			int64(r.SkippedLines),
			r.Duration.Seconds(),
			r.Error,
			r.StartedAt,
		)
		if err := tbl.AddRow(vals...); err != nil {
			return nil, err
		}
	}
	return tbl, nil
}
