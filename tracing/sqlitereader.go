package tracing

import (
	"database/sql"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// TaskQuery is used to define the tasks to be queried. Not all the field has to
// be set. If the fields are empty, the criteria is ignored.
type TaskQuery struct {
	// Use ID to select a single task by its ID.
	ID string

	// Use ParentID to select all the tasks that are children of a task.
	ParentID string

	// Use Kind to select all the tasks that are of a kind.
	Kind string

	// Use Where to select all the tasks that are executed at a location.
	Where string

	// Enable time range selection.
	EnableTimeRange bool

	// Use StartTime to select tasks that overlaps with the given time range.
	StartTime, EndTime float64

	// EnableSteps also loads the steps of the selected tasks.
	EnableSteps bool
}

// SQLiteTraceReader reads the tasks that a SQLiteTraceWriter has stored.
type SQLiteTraceReader struct {
	*sql.DB

	filename string
}

// NewSQLiteTraceReader creates a new SQLiteTraceReader for a database file.
func NewSQLiteTraceReader(filename string) *SQLiteTraceReader {
	return &SQLiteTraceReader{filename: filename}
}

// Init establishes a connection to the database.
func (r *SQLiteTraceReader) Init() error {
	if _, err := os.Stat(r.filename); err != nil {
		return errors.Wrapf(err, "reading trace %s", r.filename)
	}

	db, err := sql.Open("sqlite3", r.filename)
	if err != nil {
		return errors.Wrapf(err, "opening %s", r.filename)
	}

	r.DB = db

	return nil
}

// ListComponents returns the locations that appear in the trace, sorted by
// name.
func (r *SQLiteTraceReader) ListComponents() ([]string, error) {
	rows, err := r.Query(
		"SELECT DISTINCT location FROM trace ORDER BY location")
	if err != nil {
		return nil, errors.Wrap(err, "listing components")
	}
	defer rows.Close()

	components := []string{}
	for rows.Next() {
		var component string
		if err := rows.Scan(&component); err != nil {
			return nil, errors.Wrap(err, "scanning component")
		}

		components = append(components, component)
	}

	return components, rows.Err()
}

// ListTasks returns the tasks in the trace that match the query, ordered by
// start time.
func (r *SQLiteTraceReader) ListTasks(query TaskQuery) ([]Task, error) {
	sqlStr, args := prepareTaskQuery(query)

	rows, err := r.Query(sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "listing tasks")
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t := Task{}

		err := rows.Scan(
			&t.ID,
			&t.ParentID,
			&t.Kind,
			&t.What,
			&t.Where,
			&t.StartTime,
			&t.EndTime,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scanning task")
		}

		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if query.EnableSteps {
		for i := range tasks {
			tasks[i].Steps, err = r.listSteps(tasks[i].ID)
			if err != nil {
				return nil, err
			}
		}
	}

	return tasks, nil
}

func (r *SQLiteTraceReader) listSteps(taskID string) ([]TaskStep, error) {
	rows, err := r.Query(
		"SELECT time, what FROM trace_steps WHERE task_id = ? ORDER BY time",
		taskID)
	if err != nil {
		return nil, errors.Wrapf(err, "listing steps of task %s", taskID)
	}
	defer rows.Close()

	var steps []TaskStep
	for rows.Next() {
		s := TaskStep{}
		if err := rows.Scan(&s.Time, &s.What); err != nil {
			return nil, errors.Wrapf(err, "scanning step of task %s", taskID)
		}

		steps = append(steps, s)
	}

	return steps, rows.Err()
}

func prepareTaskQuery(query TaskQuery) (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString(`SELECT task_id, parent_id, kind, what, location,
		start_time, end_time FROM trace WHERE 1=1`)

	conditions := []struct {
		column, value string
	}{
		{"task_id", query.ID},
		{"parent_id", query.ParentID},
		{"kind", query.Kind},
		{"location", query.Where},
	}

	for _, c := range conditions {
		if c.value == "" {
			continue
		}

		sb.WriteString(" AND " + c.column + " = ?")
		args = append(args, c.value)
	}

	if query.EnableTimeRange {
		sb.WriteString(" AND end_time > ? AND start_time < ?")
		args = append(args, query.StartTime, query.EndTime)
	}

	sb.WriteString(" ORDER BY start_time, task_id")

	return sb.String(), args
}
