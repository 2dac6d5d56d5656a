package tracing

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sugawarayuuta/sonnet"
	"github.com/tebeka/atexit"
)

// JSONTraceWriter writes tasks as a JSON array.
type JSONTraceWriter struct {
	lock      sync.Mutex
	path      string
	w         io.Writer
	closer    io.Closer
	firstTask bool
	finished  bool
}

// NewJSONTraceWriter creates a writer that writes to the file at path when
// Init is called. An empty path generates a unique file name.
func NewJSONTraceWriter(path string) *JSONTraceWriter {
	w := &JSONTraceWriter{path: path, firstTask: true}

	atexit.Register(w.Flush)

	return w
}

// NewJSONTraceWriterTo creates a writer that writes to w. It is ready to use
// without Init.
func NewJSONTraceWriterTo(w io.Writer) *JSONTraceWriter {
	jw := &JSONTraceWriter{w: w, firstTask: true}
	jw.mustWrite([]byte("[\n"))

	return jw
}

// Path returns the file that the tasks are written to.
func (t *JSONTraceWriter) Path() string {
	return t.path
}

// Init creates the output file.
func (t *JSONTraceWriter) Init() error {
	if t.path == "" {
		t.path = xid.New().String() + ".json"
	}

	f, err := os.Create(t.path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", t.path)
	}

	t.w = f
	t.closer = f
	t.mustWrite([]byte("[\n"))

	return nil
}

// Write writes a completed task.
func (t *JSONTraceWriter) Write(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.firstTask {
		t.firstTask = false
	} else {
		t.mustWrite([]byte(",\n"))
	}

	b, err := sonnet.Marshal(task)
	if err != nil {
		panic(err)
	}

	t.mustWrite(b)
}

// Flush closes the JSON array. Nothing can be written afterwards.
func (t *JSONTraceWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.finished || t.w == nil {
		return
	}

	t.mustWrite([]byte("\n]\n"))
	t.finished = true

	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			panic(err)
		}
	}
}

func (t *JSONTraceWriter) mustWrite(b []byte) {
	if _, err := t.w.Write(b); err != nil {
		panic(err)
	}
}
