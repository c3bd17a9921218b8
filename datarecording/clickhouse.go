package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
	"github.com/tebeka/atexit"
)

// clickHouseRecorder writes tables into a ClickHouse server with one batch
// per table on every flush.
type clickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	exec       *execRecorder
	tables     map[string]*table
	entryCount int
	closed     bool
}

// NewClickHouse connects to the ClickHouse server described by dsn, e.g.
// "clickhouse://localhost:9000/flowmem?username=default".
func NewClickHouse(dsn string, batchSize int) (DataRecorder, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	opts.DialTimeout = 30 * time.Second
	opts.ConnMaxLifetime = time.Hour

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	r := &clickHouseRecorder{
		conn:      conn,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}

	r.exec = newExecRecorder(r)
	r.exec.Start()

	atexit.Register(func() { r.Flush() })

	return r, nil
}

func clickHouseType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "Int64"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64:
		return "UInt64"
	case reflect.Float32, reflect.Float64:
		return "Float64"
	default:
		return "String"
	}
}

// clickHouseValues widens every field to the column type picked by
// clickHouseType.
func clickHouseValues(entry any) []any {
	value := reflect.ValueOf(entry)
	v := make([]any, 0, value.NumField())

	for i := 0; i < value.NumField(); i++ {
		f := value.Field(i)
		switch clickHouseType(f.Kind()) {
		case "Int64":
			v = append(v, f.Int())
		case "UInt64":
			v = append(v, f.Uint())
		case "Float64":
			v = append(v, f.Float())
		default:
			v = append(v, f.Interface())
		}
	}

	return v
}

func (r *clickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	if err := checkStructFields(sampleEntry); err != nil {
		panic(err)
	}

	s := structs.New(sampleEntry)
	columns := make([]string, 0, len(s.Fields()))

	for _, f := range s.Fields() {
		kind := reflect.TypeOf(f.Value()).Kind()
		columns = append(columns, f.Name()+" "+clickHouseType(kind))
	}

	query := "CREATE TABLE IF NOT EXISTS " + tableName +
		" (" + strings.Join(columns, ", ") + ") ENGINE = MergeTree() ORDER BY tuple()"
	if err := r.conn.Exec(context.Background(), query); err != nil {
		panic(fmt.Errorf("create table %s: %w", tableName, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}
}

func (r *clickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	table, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	table.entries = append(table.entries, entry)
	r.entryCount++
	full := r.entryCount >= r.batchSize

	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

func (r *clickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	return tables
}

func (r *clickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 || r.closed {
		return
	}

	ctx := context.Background()

	for name, table := range r.tables {
		if len(table.entries) == 0 {
			continue
		}

		batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+name)
		if err != nil {
			panic(err)
		}

		for _, entry := range table.entries {
			if err := batch.Append(clickHouseValues(entry)...); err != nil {
				panic(err)
			}
		}

		if err := batch.Send(); err != nil {
			panic(err)
		}

		table.entries = nil
	}

	r.entryCount = 0
}

func (r *clickHouseRecorder) Close() error {
	if r.closed {
		return nil
	}

	r.exec.End()
	r.Flush()
	r.closed = true

	return r.conn.Close()
}
