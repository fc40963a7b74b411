// Package testserver runs an in-process fake of the CacheFS master and job
// master APIs for tests. Files and scripted job outcomes are registered up
// front; the server records every submission, session, and poll so tests
// can assert on concurrency and resource usage.
package testserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	gopath "path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cachefs/loadctl/models"
)

// A Submission records one job accepted by the fake job master.
type Submission struct {
	Path        string
	Replication int
}

// Server fakes the master metadata API and the job master API on a single
// httptest server. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string]models.FileStatus
	children map[string][]string
	scripts  map[string][]models.Status
	jobs     map[string]*jobState

	failRuns  int
	failClose bool

	submissions []Submission
	runRequests int
	opened      int
	closed      int
	active      int
	peakActive  int
}

type jobState struct {
	seq   []models.Status
	polls int
	done  bool
}

// New starts a Server. Callers should Close it when done.
func New() *Server {
	s := &Server{
		files:    make(map[string]models.FileStatus),
		children: make(map[string][]string),
		scripts:  make(map[string][]models.Status),
		jobs:     make(map[string]*jobState),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/files/status", s.handleFileStatus)
	mux.HandleFunc("/v1/files/list", s.handleFileList)
	mux.HandleFunc("/v1/sessions", s.handleSessions)
	mux.HandleFunc("/v1/sessions/", s.handleSession)
	mux.HandleFunc("/v1/jobs", s.handleRun)
	mux.HandleFunc("/v1/jobs/", s.handleJobStatus)
	s.Server = httptest.NewServer(mux)
	return s
}

// AddDir registers a directory.
func (s *Server) AddDir(path string) {
	s.add(models.FileStatus{Path: path, Folder: true})
}

// AddFile registers a file with the given in-memory percentage.
func (s *Server) AddFile(path string, pct int) {
	s.add(models.FileStatus{Path: path, InMemoryPercentage: pct})
}

func (s *Server) add(st models.FileStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[st.Path] = st
	parent := gopath.Dir(st.Path)
	if parent != st.Path {
		s.children[parent] = append(s.children[parent], st.Path)
	}
}

// ScriptStatuses sets the status sequence jobs for path report, one entry
// per poll; polls past the end repeat the last entry. Unscripted jobs
// report COMPLETED on the first poll. Resubmitting a path restarts its
// sequence.
func (s *Server) ScriptStatuses(path string, seq ...models.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[path] = seq
}

// FailNextRuns makes the next n submissions return 503.
func (s *Server) FailNextRuns(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRuns = n
}

// FailClose makes session deletes return 500.
func (s *Server) FailClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failClose = true
}

// Submissions returns every accepted submission in order.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submissions...)
}

// RunRequests returns how many submissions were attempted, accepted or not.
func (s *Server) RunRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runRequests
}

// Sessions returns how many sessions were opened and closed.
func (s *Server) Sessions() (opened, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed
}

// PeakActive returns the largest number of jobs that were submitted but not
// yet polled to a terminal or failed status at the same time.
func (s *Server) PeakActive() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peakActive
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, code int, id, title string) {
	writeJSON(w, code, map[string]string{"id": id, "title": title})
}

func (s *Server) handleFileStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st, ok := s.files[r.URL.Query().Get("path")]
	s.mu.Unlock()
	if !ok {
		writeProblem(w, http.StatusNotFound, "not_found", "path not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	s.mu.Lock()
	st, ok := s.files[path]
	sts := make([]models.FileStatus, 0, len(s.children[path]))
	for _, child := range s.children[path] {
		sts = append(sts, s.files[child])
	}
	s.mu.Unlock()
	if !ok || !st.Folder {
		writeProblem(w, http.StatusNotFound, "not_found", "path not found")
		return
	}
	writeJSON(w, http.StatusOK, sts)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"id": uuid.NewString()})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	s.mu.Lock()
	fail := s.failClose
	if !fail {
		s.closed++
	}
	s.mu.Unlock()
	if fail {
		writeProblem(w, http.StatusInternalServerError, "close_failed", "could not release session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var job models.LoadJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", "could not parse job")
		return
	}
	s.mu.Lock()
	s.runRequests++
	if s.failRuns > 0 {
		s.failRuns--
		s.mu.Unlock()
		writeProblem(w, http.StatusServiceUnavailable, "service_unavailable", "job master unavailable")
		return
	}
	id := uuid.NewString()
	seq := s.scripts[job.Path]
	if len(seq) == 0 {
		seq = []models.Status{models.StatusCompleted}
	}
	s.jobs[id] = &jobState{seq: seq}
	s.submissions = append(s.submissions, Submission{Path: job.Path, Replication: job.Replication})
	s.active++
	if s.active > s.peakActive {
		s.peakActive = s.active
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, models.JobInfo{ID: id, Status: models.StatusCreated})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		writeProblem(w, http.StatusNotFound, "not_found", "no such job")
		return
	}
	idx := job.polls
	if idx >= len(job.seq) {
		idx = len(job.seq) - 1
	}
	job.polls++
	st := job.seq[idx]
	if !job.done && (st.Terminal() || st == models.StatusFailed) {
		job.done = true
		s.active--
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, models.JobInfo{ID: id, Status: st})
}
