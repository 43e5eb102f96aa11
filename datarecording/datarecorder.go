// Package datarecording keeps the records of a run in an in-memory SQLite
// database, so that summaries can be computed with SQL.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns a slice containing names of all tables
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// SQLiteRecorder is the DataRecorder that writes into an SQLite database.
type SQLiteRecorder struct {
	db *sql.DB

	lock       sync.Mutex
	name       string
	tables     map[string]*table
	tableNames []string
	batchSize  int
	entryCount int
	closed     bool
}

// openRecorders are flushed when the process exits through atexit. A single
// exit handler serves all of them, and Close takes a recorder out.
var (
	openRecorders     = make(map[*SQLiteRecorder]struct{})
	openRecordersLock sync.Mutex
	registerExitOnce  sync.Once
)

func trackRecorder(w *SQLiteRecorder) {
	registerExitOnce.Do(func() { atexit.Register(flushOpenRecorders) })

	openRecordersLock.Lock()
	defer openRecordersLock.Unlock()

	openRecorders[w] = struct{}{}
}

func untrackRecorder(w *SQLiteRecorder) {
	openRecordersLock.Lock()
	defer openRecordersLock.Unlock()

	delete(openRecorders, w)
}

func flushOpenRecorders() {
	openRecordersLock.Lock()
	recorders := make([]*SQLiteRecorder, 0, len(openRecorders))
	for w := range openRecorders {
		recorders = append(recorders, w)
	}
	openRecordersLock.Unlock()

	for _, w := range recorders {
		w.Flush()
	}
}

type table struct {
	structType reflect.Type
	entries    []any
}

// NewInMemory creates a recorder backed by a private in-memory database. An
// empty name gets a unique generated one. Nothing is written to disk.
func NewInMemory(name string) (*SQLiteRecorder, error) {
	if name == "" {
		name = "ratmaze_" + xid.New().String()
	}

	dsn := "file:" + name + "?mode=memory&cache=shared"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open recorder database: %w", err)
	}

	// The database lives as long as its last connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open recorder database: %w", err)
	}

	w := NewWithDB(db)
	w.name = name

	return w, nil
}

// NewWithDB creates a recorder that writes into the given database.
func NewWithDB(db *sql.DB) *SQLiteRecorder {
	w := &SQLiteRecorder{
		db:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	trackRecorder(w)

	return w
}

// Name returns the name of the in-memory database.
func (w *SQLiteRecorder) Name() string {
	return w.name
}

// DB returns the underlying database, for queries.
func (w *SQLiteRecorder) DB() *sql.DB {
	return w.db
}

func isAllowedType(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	types := reflect.TypeOf(entry)
	if types == nil || types.Kind() != reflect.Struct {
		return errors.New("entry is not a struct")
	}

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		if !isAllowedType(field.Type.Kind()) {
			return fmt.Errorf("field %s has unsupported type %s",
				field.Name, field.Type)
		}
	}

	return nil
}

func fieldNames(entry any) []string {
	types := reflect.TypeOf(entry)

	names := make([]string, types.NumField())
	for i := range names {
		names[i] = types.Field(i).Name
	}

	return names
}

// CreateTable creates a table. It panics if the entry has fields that cannot
// be stored or if the table already exists.
func (w *SQLiteRecorder) CreateTable(tableName string, sampleEntry any) {
	err := checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, exists := w.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	fields := strings.Join(fieldNames(sampleEntry), ", \n\t")

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`
	w.mustExecute(createTableSQL)

	w.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
	}
	w.tableNames = append(w.tableNames, tableName)
}

// InsertData buffers an entry. Entries are written in batches.
func (w *SQLiteRecorder) InsertData(tableName string, entry any) {
	w.lock.Lock()
	defer w.lock.Unlock()

	table, exists := w.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != table.structType {
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	table.entries = append(table.entries, entry)

	w.entryCount++
	if w.entryCount >= w.batchSize {
		w.flush()
	}
}

// ListTables returns the table names in creation order.
func (w *SQLiteRecorder) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	tables := make([]string, len(w.tableNames))
	copy(tables, w.tableNames)

	return tables
}

// Flush writes all the buffered entries in one transaction.
func (w *SQLiteRecorder) Flush() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.flush()
}

func (w *SQLiteRecorder) flush() {
	if w.entryCount == 0 || w.closed {
		return
	}

	tx, err := w.db.Begin()
	if err != nil {
		panic(err)
	}

	for _, tableName := range w.tableNames {
		table := w.tables[tableName]
		if len(table.entries) == 0 {
			continue
		}

		stmt := w.prepareStatement(tx, tableName, table.entries[0])

		for _, entry := range table.entries {
			v := []any{}

			values := reflect.ValueOf(entry)
			for i := 0; i < values.NumField(); i++ {
				v = append(v, values.Field(i).Interface())
			}

			_, err := stmt.Exec(v...)
			if err != nil {
				panic(err)
			}
		}

		table.entries = nil

		stmt.Close()
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	w.entryCount = 0
}

// Close flushes the remaining entries and closes the database, which drops
// all the data. A closed recorder is no longer flushed at exit.
func (w *SQLiteRecorder) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return nil
	}

	w.flush()
	w.closed = true
	untrackRecorder(w)

	return w.db.Close()
}

func (w *SQLiteRecorder) mustExecute(query string) sql.Result {
	res, err := w.db.Exec(query)
	if err != nil {
		panic(fmt.Errorf("failed to execute %q: %w", query, err))
	}

	return res
}

func (w *SQLiteRecorder) prepareStatement(
	tx *sql.Tx,
	table string,
	entry any,
) *sql.Stmt {
	n := fieldNames(entry)
	for i := 0; i < len(n); i++ {
		n[i] = "?"
	}

	entryToFill := "(" + strings.Join(n, ", ") + ")"
	sqlStr := "INSERT INTO " + table + " VALUES " + entryToFill

	stmt, err := tx.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	return stmt
}
