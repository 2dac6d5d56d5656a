// Package daisen serves a recorded packet trace over HTTP so that the
// traffic of a finished simulation can be inspected in a browser.
package daisen

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sugawarayuuta/sonnet"

	"github.com/sarchlab/twinrouter/daisen/static"
	"github.com/sarchlab/twinrouter/tracing"
)

// TraceReader provides the recorded tasks.
type TraceReader interface {
	ListComponents() ([]string, error)
	ListTasks(query tracing.TaskQuery) ([]tracing.Task, error)
}

// Server answers trace queries.
type Server struct {
	reader TraceReader
	fs     http.FileSystem
}

// NewServer creates a Server that reads from the given reader.
func NewServer(reader TraceReader) *Server {
	return &Server{
		reader: reader,
		fs:     static.GetAssets(),
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/trace", s.httpTrace).Methods(http.MethodGet)
	r.HandleFunc("/api/compnames", s.httpComponentNames).
		Methods(http.MethodGet)
	r.HandleFunc("/api/compinfo", s.httpComponentInfo).
		Methods(http.MethodGet)

	r.HandleFunc("/dashboard", s.serveIndex)
	r.HandleFunc("/component", s.serveIndex)
	r.HandleFunc("/task", s.serveIndex)
	r.PathPrefix("/").Handler(http.FileServer(s.fs))

	return r
}

// ListenAndServe serves the trace at the address until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	fmt.Printf("Listening %s\n", addr)

	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) httpTrace(w http.ResponseWriter, r *http.Request) {
	query := tracing.TaskQuery{
		ID:          r.FormValue("id"),
		ParentID:    r.FormValue("parentid"),
		Kind:        r.FormValue("kind"),
		Where:       r.FormValue("where"),
		EnableSteps: r.FormValue("steps") == "true",
	}

	if r.FormValue("starttime") != "" && r.FormValue("endtime") != "" {
		var err error

		query.EnableTimeRange = true

		query.StartTime, err = strconv.ParseFloat(r.FormValue("starttime"), 64)
		if badRequest(w, err) {
			return
		}

		query.EndTime, err = strconv.ParseFloat(r.FormValue("endtime"), 64)
		if badRequest(w, err) {
			return
		}
	}

	tasks, err := s.reader.ListTasks(query)
	if internalError(w, err) {
		return
	}

	writeJSON(w, tasks)
}

func (s *Server) httpComponentNames(w http.ResponseWriter, _ *http.Request) {
	names, err := s.reader.ListComponents()
	if internalError(w, err) {
		return
	}

	writeJSON(w, names)
}

func (s *Server) serveIndex(w http.ResponseWriter, _ *http.Request) {
	f, err := s.fs.Open("index.html")
	dieOnErr(err)
	defer f.Close()

	p, err := io.ReadAll(f)
	dieOnErr(err)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(p)
	dieOnErr(err)
}

func badRequest(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, "Error: %s", err)

	return true
}

func internalError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "Error: %s", err)

	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := sonnet.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(b)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
