package tracing

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteTraceWriter is a writer that writes trace data to a SQLite database.
type SQLiteTraceWriter struct {
	*sql.DB

	statement     *sql.Stmt
	stepStatement *sql.Stmt

	dbName           string
	tasksToWriteToDB []Task
	batchSize        int
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. If path is empty, a
// unique name is generated. The ".sqlite3" extension is added to the path.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		dbName:    path,
		batchSize: 100000,
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// FileName returns the database file.
func (t *SQLiteTraceWriter) FileName() string {
	return t.dbName + ".sqlite3"
}

// Init establishes a connection to the database.
func (t *SQLiteTraceWriter) Init() error {
	if t.dbName == "" {
		t.dbName = "twinrouter_trace_" + xid.New().String()
	}

	if err := t.createDatabase(); err != nil {
		return err
	}

	if err := t.createTables(); err != nil {
		return err
	}

	return t.prepareStatements()
}

// Write buffers a task. The buffer is flushed when it is full.
func (t *SQLiteTraceWriter) Write(task Task) {
	t.tasksToWriteToDB = append(t.tasksToWriteToDB, task)
	if len(t.tasksToWriteToDB) >= t.batchSize {
		t.Flush()
	}
}

// Flush writes all the buffered tasks to the database.
func (t *SQLiteTraceWriter) Flush() {
	if len(t.tasksToWriteToDB) == 0 || t.DB == nil {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for _, task := range t.tasksToWriteToDB {
		_, err := t.statement.Exec(
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Where,
			task.StartTime,
			task.EndTime,
		)
		if err != nil {
			panic(errors.Wrapf(err, "inserting task %s", task.ID))
		}

		for _, step := range task.Steps {
			_, err := t.stepStatement.Exec(task.ID, step.Time, step.What)
			if err != nil {
				panic(errors.Wrapf(err, "inserting step of task %s", task.ID))
			}
		}
	}

	t.tasksToWriteToDB = nil
}

func (t *SQLiteTraceWriter) createDatabase() error {
	filename := t.FileName()

	if _, err := os.Stat(filename); err == nil {
		return errors.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return errors.Wrapf(err, "opening %s", filename)
	}

	fmt.Fprintf(os.Stderr, "Trace is collected in database: %s\n", filename)

	t.DB = db

	return nil
}

func (t *SQLiteTraceWriter) createTables() error {
	stmts := []string{
		`create table trace (
			task_id varchar(200) not null unique,
			parent_id varchar(200),
			kind varchar(100),
			what varchar(100),
			location varchar(100),
			start_time bigint,
			end_time bigint
		);`,
		`create table trace_steps (
			task_id varchar(200) not null,
			time bigint,
			what varchar(100)
		);`,
		`create index trace_task_id on trace (task_id);`,
		`create index trace_location on trace (location);`,
		`create index trace_steps_task_id on trace_steps (task_id);`,
	}

	for _, s := range stmts {
		if _, err := t.Exec(s); err != nil {
			return errors.Wrap(err, "creating trace tables")
		}
	}

	return nil
}

func (t *SQLiteTraceWriter) prepareStatements() error {
	var err error

	t.statement, err = t.Prepare(
		"INSERT INTO trace VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "preparing task statement")
	}

	t.stepStatement, err = t.Prepare(
		"INSERT INTO trace_steps VALUES (?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "preparing step statement")
	}

	return nil
}

func (t *SQLiteTraceWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		panic(errors.Wrapf(err, "executing %q", query))
	}

	return res
}
