package clickhouseclient

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"JMLogPump/internal/config"
	"JMLogPump/internal/models"
)

const sendTimeout = 60 * time.Second

type Client struct {
	conn         driver.Conn
	RecordsTable string
	SeriesTable  string
	Logger       *zap.Logger
}

// New создает клиента ClickHouse
// Protocol: "native" или "http"
func New(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	protocol := clickhouse.Native
	if cfg.Protocol == "http" {
		protocol = clickhouse.HTTP
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Address},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		Protocol:    protocol,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	return &Client{
		conn:         conn,
		RecordsTable: cfg.RecordsTable,
		SeriesTable:  cfg.SeriesTable,
		Logger:       logger,
	}, nil
}

// RecordsDDL - схема таблицы сырых записей
func RecordsDDL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (" +
		"RunID String, File String, EventTime DateTime64(3), SecFromStart Int32, " +
		"Label LowCardinality(String), Type LowCardinality(String), " +
		"Elapsed Int64, Latency Int64, KBytes Int64, Success UInt8, ActiveUsers Nullable(Int64)" +
		") ENGINE = MergeTree ORDER BY (RunID, EventTime)"
}

// SeriesDDL - схема таблицы агрегированных рядов
func SeriesDDL(table string) string {
	return "CREATE TABLE IF NOT EXISTS " + table + " (" +
		"RunID String, File String, Mode LowCardinality(String), Label String, " +
		"WindowSec UInt32, Offset Int32, Value Float64, Trend Nullable(Float64)" +
		") ENGINE = MergeTree ORDER BY (RunID, Mode, Label, Offset)"
}

// EnsureSchema создает таблицы, если их еще нет
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, ddl := range []string{RecordsDDL(c.RecordsTable), SeriesDDL(c.SeriesTable)} {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// InsertRecords отправляет пачку сырых записей
func (c *Client) InsertRecords(ctx context.Context, rows []models.RecordRow) error {
	return c.insert(ctx, c.RecordsTable,
		"RunID, File, EventTime, SecFromStart, Label, Type, Elapsed, Latency, KBytes, Success, ActiveUsers",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.RunID, r.File, r.EventTime, r.SecFromStart, r.Label, r.Type,
				r.Elapsed, r.Latency, r.KBytes, r.Success, r.ActiveUsers)
		})
}

// InsertSeries отправляет пачку точек агрегированных рядов
func (c *Client) InsertSeries(ctx context.Context, rows []models.SeriesRow) error {
	return c.insert(ctx, c.SeriesTable,
		"RunID, File, Mode, Label, WindowSec, Offset, Value, Trend",
		len(rows), func(b driver.Batch, i int) error {
			r := rows[i]
			return b.Append(r.RunID, r.File, r.Mode, r.Label, r.WindowSec, r.Offset, r.Value, r.Trend)
		})
}

func (c *Client) insert(ctx context.Context, table, columns string, n int, appendRow func(driver.Batch, int) error) error {
	if n == 0 {
		return nil
	}
	// Используем отдельный контекст с таймаутом, чтобы отмена сервиса не прерывала операцию
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	batch, err := c.conn.PrepareBatch(dbCtx, "INSERT INTO "+table+" ("+columns+")")
	if err != nil {
		c.Logger.Error("prepare batch", zap.Error(err), zap.String("table", table))
		return fmt.Errorf("prepare batch: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := appendRow(batch, i); err != nil {
			_ = batch.Abort()
			c.Logger.Error("append batch", zap.Error(err), zap.String("table", table), zap.Int("row", i))
			return fmt.Errorf("append: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		c.Logger.Error("send batch", zap.Error(err), zap.String("table", table))
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Close закрывает соединение с ClickHouse
func (c *Client) Close() error {
	return c.conn.Close()
}
