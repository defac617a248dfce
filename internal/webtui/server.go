// Package webtui serves the interactive task table in a browser: every websocket
// connection gets its own tasklens TUI process on a pseudo-terminal, drawn by xterm.js.
package webtui

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html static/*.css static/*.js
var assetsFS embed.FS

const (
	defaultCols = 120
	defaultRows = 40
)

type ServerConfig struct {
	Addr string
	// Command is the argv started for each session. Empty means this executable with Args,
	// which with no subcommand opens the TUI.
	Command []string
	Args    []string
	// Title is shown in the page header, typically the store dir or API url.
	Title string
	// MaxSessions caps concurrent terminals; 0 means unlimited.
	MaxSessions int
	Log         logrus.FieldLogger
}

type Server struct {
	cfg    ServerConfig
	tmpl   *template.Template
	log    logrus.FieldLogger
	active atomic.Int64
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("webtui: missing addr")
	}
	if len(cfg.Command) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		cfg.Command = append([]string{exe}, cfg.Args...)
	}
	tmpl, err := template.ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Server{cfg: cfg, tmpl: tmpl, log: log.WithField("component", "webtui")}, nil
}

func (s *Server) Addr() string {
	return strings.TrimSpace(s.cfg.Addr)
}

// Sessions is the number of terminals currently open.
func (s *Server) Sessions() int {
	return int(s.active.Load())
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.Handle("/", http.RedirectHandler("/terminal", http.StatusFound)).Methods(http.MethodGet)
	r.HandleFunc("/terminal", s.handleTerminal).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/static/{name}", s.handleStatic).Methods(http.MethodGet)

	return r
}

var contentTypes = map[string]string{
	".css": "text/css; charset=utf-8",
	".js":  "text/javascript; charset=utf-8",
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ct, ok := contentTypes[path.Ext(name)]
	if !ok || strings.Contains(name, "..") {
		http.NotFound(w, r)
		return
	}
	b, err := assetsFS.ReadFile("static/" + name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", ct)
	_, _ = w.Write(b)
}

type terminalVM struct {
	Title string
	Cols  int
	Rows  int
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	vm := terminalVM{Title: strings.TrimSpace(s.cfg.Title), Cols: defaultCols, Rows: defaultRows}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "terminal.html", vm); err != nil {
		s.log.WithError(err).Warn("render terminal page")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
