// Package server serves the status dashboard.
package server

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/statuswatch/statuswatch/internal/sqlgen"
	"github.com/statuswatch/statuswatch/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// queryTimeout bounds one generation session from the query page.
const queryTimeout = 3 * time.Minute

// Server is the HTTP server for the dashboard.
type Server struct {
	store     *store.Store
	generator *sqlgen.Generator
	pages     map[string]*template.Template
	mux       *http.ServeMux
}

// New creates a new Server. generator may be nil when no LLM is configured;
// the query page then explains instead of failing.
func New(st *store.Store, generator *sqlgen.Generator) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"timeago": timeAgo,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "site.html", "advisories.html", "query.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{store: st, generator: generator, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/site/", s.handleSite)
	s.mux.HandleFunc("/advisories", s.handleAdvisories)
	s.mux.HandleFunc("/query", s.handleQuery)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	states, err := s.store.CurrentStates()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"States": states,
	})
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	siteID := strings.TrimPrefix(r.URL.Path, "/site/")
	if siteID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	site, err := s.store.GetSite(siteID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.NotFound(w, r)
		return
	}

	readings, _ := s.store.GetReadings(siteID, 50)
	advisories, _ := s.store.GetAdvisories(siteID, false, 20)

	s.render(w, "site.html", map[string]any{
		"Site":       site,
		"Readings":   readings,
		"Advisories": advisories,
	})
}

func (s *Server) handleAdvisories(w http.ResponseWriter, r *http.Request) {
	affectsOnly := r.URL.Query().Get("affecting") == "1"
	advisories, err := s.store.GetAdvisories("", affectsOnly, 100)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "advisories.html", map[string]any{
		"Advisories":  advisories,
		"AffectsOnly": affectsOnly,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Task": ""}

	if r.Method == http.MethodPost {
		task := strings.TrimSpace(r.FormValue("task"))
		data["Task"] = task
		switch {
		case task == "":
			data["Error"] = "Enter a question first."
		case s.generator == nil:
			data["Error"] = "No LLM provider configured; the query page needs one."
		default:
			ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
			defer cancel()
			session, err := s.generator.Generate(ctx, task, sqlgen.Options{})
			if err != nil {
				data["Error"] = err.Error()
			} else {
				data["Session"] = session
			}
		}
	}

	s.render(w, "query.html", data)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func timeAgo(t *time.Time) string {
	if t == nil {
		return "never"
	}
	d := time.Since(*t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// Serve starts the HTTP server on the given port.
func Serve(st *store.Store, generator *sqlgen.Generator, port int) error {
	srv, err := New(st, generator)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
