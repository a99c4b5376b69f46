// Package gateway implements the HTTP dispatch layer (C5): one enqueue
// endpoint per job kind, a generic status endpoint, the upload/download
// surface backed by the shared-volume contract (C7) and the artifact
// token service (C6), and the admission middleware (C9) that gates every
// request behind an API key or an allow-listed source address.
package gateway

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nuulab/ifcjobs/pkg/broker"
	"github.com/nuulab/ifcjobs/pkg/handlers"
	"github.com/nuulab/ifcjobs/pkg/token"
	"github.com/nuulab/ifcjobs/pkg/volume"
)

// RequestValidator is implemented by every per-kind enqueue request
// struct (pkg/handlers). Validate sanitizes client-supplied filenames and
// checks required fields in place, so the gateway can reject a malformed
// or unsafe request with a `validation` failure before it ever reaches
// the broker (spec §4.5 point 2, §7's "validation" error kind, §8
// invariant 10).
type RequestValidator interface {
	Validate() error
}

// QueueSpec describes one enqueue endpoint: which queue and handler_name
// it dispatches to, the timeout assigned to jobs it creates (spec §4.5
// point 3: long for clash/diff, short for CSV/tester), and a factory for
// the typed, validatable request struct its per-kind schema decodes into.
type QueueSpec struct {
	Path        string
	Queue       string
	HandlerName string
	Timeout     time.Duration
	NewRequest  func() RequestValidator
}

// DefaultQueueSpecs enumerates the per-kind enqueue endpoints from the
// external interface table (spec §6), plus the legacy qto alias.
func DefaultQueueSpecs() []QueueSpec {
	return []QueueSpec{
		{Path: "/ifcconvert", Queue: "ifcconvert", HandlerName: "tasks.run_ifcconvert", Timeout: time.Hour,
			NewRequest: func() RequestValidator { return &handlers.ConvertRequest{} }},
		{Path: "/ifccsv", Queue: "ifccsv", HandlerName: "tasks.run_ifccsv_export", Timeout: time.Hour,
			NewRequest: func() RequestValidator { return &handlers.CSVExportRequest{} }},
		{Path: "/ifccsv/import", Queue: "ifccsv", HandlerName: "tasks.run_ifccsv_import", Timeout: time.Hour,
			NewRequest: func() RequestValidator { return &handlers.CSVImportRequest{} }},
		{Path: "/ifcclash", Queue: "ifcclash", HandlerName: "tasks.run_ifcclash_detection", Timeout: 2 * time.Hour,
			NewRequest: func() RequestValidator { return &handlers.ClashRequest{} }},
		{Path: "/ifctester", Queue: "ifctester", HandlerName: "tasks.run_ifctester_validation", Timeout: time.Hour,
			NewRequest: func() RequestValidator { return &handlers.TesterRequest{} }},
		{Path: "/ifcdiff", Queue: "ifcdiff", HandlerName: "tasks.run_ifcdiff", Timeout: 2 * time.Hour,
			NewRequest: func() RequestValidator { return &handlers.DiffRequest{} }},
		{Path: "/ifc5d", Queue: "ifc5d", HandlerName: "tasks.run_ifc5d_qto", Timeout: time.Hour,
			NewRequest: func() RequestValidator { return &handlers.QtoRequest{} }},
		{Path: "/calculate-qtos", Queue: "ifc5d", HandlerName: "tasks.run_ifc5d_qto", Timeout: time.Hour,
			NewRequest: func() RequestValidator { return &handlers.QtoRequest{} }},
		{Path: "/ifc2json", Queue: "ifc2json", HandlerName: "tasks.run_ifc2json", Timeout: time.Hour,
			NewRequest: func() RequestValidator { return &handlers.JSONRequest{} }},
		{Path: "/patch/execute", Queue: "ifcpatch", HandlerName: "tasks.run_ifcpatch", Timeout: time.Hour,
			NewRequest: func() RequestValidator { return &handlers.PatchRequest{} }},
	}
}

// KnownQueues lists every queue name the gateway dispatches to, used by
// the /health and /admin/queues endpoints to report status for queues
// that may currently be empty.
func KnownQueues() []string {
	return []string{"ifcconvert", "ifccsv", "ifcclash", "ifctester", "ifcdiff", "ifc5d", "ifc2json", "ifcpatch"}
}

// Config configures a Server.
type Config struct {
	Broker          broker.Broker
	Tokens          *token.Service
	Roots           volume.Roots
	QueueSpecs      []QueueSpec
	AdmissionConfig AdmissionConfig
	PatchListWait   time.Duration
	Logger          zerolog.Logger
}

// Server is the gateway's HTTP surface.
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	logger  zerolog.Logger
	started time.Time
}

// NewServer builds a Server with all routes wired.
func NewServer(cfg Config) *Server {
	if cfg.QueueSpecs == nil {
		cfg.QueueSpecs = DefaultQueueSpecs()
	}
	if cfg.PatchListWait <= 0 {
		cfg.PatchListWait = 10 * time.Second
	}

	s := &Server{cfg: cfg, mux: http.NewServeMux(), logger: cfg.Logger, started: time.Now()}
	s.routes()
	return s
}

// Handler returns the root handler. Admission is applied per route inside
// it; /health is left unwrapped.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	admit := newAdmission(s.cfg.AdmissionConfig)

	for _, spec := range s.cfg.QueueSpecs {
		spec := spec
		s.mux.Handle(spec.Path, admit.wrap(s.enqueueHandler(spec)))
	}

	s.mux.Handle("/patch/recipes/list", admit.wrap(http.HandlerFunc(s.handlePatchListRecipes)))
	s.mux.Handle("/jobs/", admit.wrap(http.HandlerFunc(s.routeJobs)))
	s.mux.Handle("/upload/", admit.wrap(http.HandlerFunc(s.handleUpload)))
	s.mux.Handle("/download-from-url", admit.wrap(http.HandlerFunc(s.handleDownloadFromURL)))
	s.mux.Handle("/create_download_link", admit.wrap(http.HandlerFunc(s.handleCreateDownloadLink)))
	s.mux.Handle("/download/", admit.wrap(http.HandlerFunc(s.handleDownload)))
	s.mux.Handle("/list_directories", admit.wrap(http.HandlerFunc(s.handleListDirectories)))
	// SPEC_FULL §3: /admin/queues is API-key gated only, never reachable
	// via the CIDR allow-list that the rest of the surface accepts.
	s.mux.Handle("/admin/queues", admit.requireAPIKey(http.HandlerFunc(s.handleAdminQueues)))

	// Health is exempt from admission (spec C9).
	s.mux.HandleFunc("/health", s.handleHealth)
}

func (s *Server) routeJobs(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := splitJobPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch rest {
	case "status":
		s.handleJobStatus(w, r, id)
	case "stream":
		s.handleJobStream(w, r, id)
	case "events":
		s.handleJobEvents(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// splitJobPath parses "/jobs/<id>/<rest>" into its two components.
func splitJobPath(path string) (id, rest string, ok bool) {
	const prefix = "/jobs/"
	if len(path) <= len(prefix) {
		return "", "", false
	}
	trimmed := path[len(prefix):]
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] == '/' {
			return trimmed[:i], trimmed[i+1:], true
		}
	}
	return "", "", false
}
