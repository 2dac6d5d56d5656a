package analysis

import (
	"database/sql"
	"encoding/csv"
	"os"
	"strconv"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/pkg/errors"
	"github.com/tebeka/atexit"
)

// PerfAnalyzerBackend is the interface that provides the service that can
// record performance data entries.
type PerfAnalyzerBackend interface {
	AddDataEntry(entry PerfAnalyzerEntry)
	Flush()
}

// CSVBackend is a PerfAnalyzerBackend that writes data entries to
// a CSV file.
type CSVBackend struct {
	dbFile    *os.File
	csvWriter *csv.Writer
}

// NewCSVBackend creates the CSV file dbFilename.csv and writes the header.
func NewCSVBackend(dbFilename string) (*CSVBackend, error) {
	filename := dbFilename + ".csv"

	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", filename)
	}

	p := &CSVBackend{
		dbFile:    f,
		csvWriter: csv.NewWriter(f),
	}

	header := []string{
		"Start", "End", "Where", "What", "EntryType", "Value", "Unit",
	}
	if err := p.csvWriter.Write(header); err != nil {
		return nil, errors.Wrap(err, "writing CSV header")
	}

	atexit.Register(p.Close)

	return p, nil
}

// AddDataEntry adds a data entry to the CSV file.
func (p *CSVBackend) AddDataEntry(entry PerfAnalyzerEntry) {
	err := p.csvWriter.Write([]string{
		strconv.FormatUint(uint64(entry.Start), 10),
		strconv.FormatUint(uint64(entry.End), 10),
		entry.Where,
		entry.What,
		entry.EntryType,
		strconv.FormatFloat(entry.Value, 'f', -1, 64),
		entry.Unit,
	})
	if err != nil {
		panic(err)
	}
}

// Flush flushes the CSV writer.
func (p *CSVBackend) Flush() {
	p.csvWriter.Flush()

	if err := p.csvWriter.Error(); err != nil {
		panic(err)
	}
}

// Close flushes and closes the file. Closing twice is allowed.
func (p *CSVBackend) Close() {
	if p.dbFile == nil {
		return
	}

	p.Flush()

	if err := p.dbFile.Close(); err != nil {
		panic(err)
	}

	p.dbFile = nil
}

// SQLiteBackend is a PerfAnalyzerBackend that writes data entries
// to a SQLite database.
type SQLiteBackend struct {
	*sql.DB
	statement *sql.Stmt

	batchSize int
	entries   []PerfAnalyzerEntry
}

// NewSQLiteBackend creates, or replaces, the database dbFilename.sqlite3.
func NewSQLiteBackend(dbFilename string) (*SQLiteBackend, error) {
	p := &SQLiteBackend{
		batchSize: 50000,
	}

	if err := p.createDatabase(dbFilename + ".sqlite3"); err != nil {
		return nil, err
	}

	if err := p.prepareStatement(); err != nil {
		return nil, err
	}

	atexit.Register(p.Flush)

	return p, nil
}

// AddDataEntry buffers an entry. The buffer is written when it is full.
func (p *SQLiteBackend) AddDataEntry(entry PerfAnalyzerEntry) {
	p.entries = append(p.entries, entry)
	if len(p.entries) >= p.batchSize {
		p.Flush()
	}
}

// Flush writes the buffered entries in one transaction.
func (p *SQLiteBackend) Flush() {
	if len(p.entries) == 0 {
		return
	}

	tx, err := p.Begin()
	if err != nil {
		panic(err)
	}

	stmt := tx.Stmt(p.statement)
	for _, entry := range p.entries {
		_, err = stmt.Exec(
			uint64(entry.Start),
			uint64(entry.End),
			entry.Where,
			entry.What,
			entry.EntryType,
			entry.Value,
			entry.Unit,
		)
		if err != nil {
			_ = tx.Rollback()
			panic(err)
		}
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	p.entries = p.entries[:0]
}

func (p *SQLiteBackend) createDatabase(dbFilename string) error {
	if _, err := os.Stat(dbFilename); err == nil {
		if err := os.Remove(dbFilename); err != nil {
			return errors.Wrapf(err, "removing %s", dbFilename)
		}
	}

	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		return errors.Wrapf(err, "opening %s", dbFilename)
	}

	p.DB = db

	_, err = p.Exec(`
	create table perf (
		id integer not null primary key,
		start_time integer,
		end_time integer,
		location text,
		what text,
		entry_type text,
		value real,
		unit text
	);
	`)

	return errors.Wrap(err, "creating perf table")
}

func (p *SQLiteBackend) prepareStatement() error {
	var err error

	p.statement, err = p.Prepare(`
	insert into perf(start_time, end_time, location, what, entry_type, value, unit)
	values(?, ?, ?, ?, ?, ?, ?)
	`)

	return errors.Wrap(err, "preparing perf statement")
}
