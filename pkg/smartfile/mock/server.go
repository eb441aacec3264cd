package mock

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultPrefix is where the API routes are mounted.
const DefaultPrefix = "/api/2"

// DefaultChunkSize is the write size used when streaming downloads.
const DefaultChunkSize = 4096

// Options configures a Server. Empty Key disables Basic authentication;
// empty ClientToken or ClientSecret disables OAuth.
type Options struct {
	Prefix       string
	Key          string
	Password     string
	ClientToken  string
	ClientSecret string
	ChunkSize    int
}

// User is an account created through /users/add/.
type User struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Server is an in-memory SmartFile API suitable for tests and local
// sandboxes.
type Server struct {
	opts   Options
	files  *tree
	router chi.Router

	mu            sync.RWMutex
	users         map[string]User
	requestTokens map[string]*requestToken
	accessTokens  map[string]string
	nonces        map[string]struct{}
}

// New builds a Server with an empty root directory.
func New(opts Options) *Server {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	opts.Prefix = "/" + strings.Trim(opts.Prefix, "/")
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	s := &Server{
		opts:          opts,
		files:         newTree(),
		users:         make(map[string]User),
		requestTokens: make(map[string]*requestToken),
		accessTokens:  make(map[string]string),
		nonces:        make(map[string]struct{}),
	}
	s.router = s.routes()
	return s
}

// Prefix returns the API mount point, e.g. "/api/2".
func (s *Server) Prefix() string { return s.opts.Prefix }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
	})

	r.Route("/oauth", func(r chi.Router) {
		r.Post("/request_token/", s.handleRequestToken)
		r.Get("/authorize/", s.handleAuthorize)
		r.Post("/access_token/", s.handleAccessToken)
	})

	r.Route(s.opts.Prefix, func(r chi.Router) {
		r.Get("/ping/", s.handlePing)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/path/info/*", s.handleInfo)
			r.Post("/path/info/*", s.handleInfo)
			r.Post("/path/oper/create/", s.handleCreate)
			r.Post("/path/oper/move/", s.handleMove)
			r.Post("/path/oper/remove/", s.handleRemove)
			r.Get("/path/data/*", s.handleDownload)
			r.Post("/path/data/*", s.handleUpload)
			r.Post("/users/add/", s.handleAddUser)
		})
	})
	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid username/password."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ping": "pong"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	children := r.Form.Get("children") == "on" || r.Form.Get("children") == "true"
	info, err := s.files.info(wildcard(r), children)
	if err != nil {
		writeTreeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	p := r.PostForm.Get("path")
	if strings.TrimSpace(p) == "" {
		writeFieldErrors(w, map[string][]string{"path": {"This field is required."}})
		return
	}
	if err := s.files.mkdirAll(p); err != nil {
		writeTreeError(w, err)
		return
	}
	info, err := s.files.info(p, false)
	if err != nil {
		writeTreeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	src, dst := r.PostForm.Get("src"), r.PostForm.Get("dst")
	missing := map[string][]string{}
	if src == "" {
		missing["src"] = []string{"This field is required."}
	}
	if dst == "" {
		missing["dst"] = []string{"This field is required."}
	}
	if len(missing) > 0 {
		writeFieldErrors(w, missing)
		return
	}
	target, err := s.files.move(src, dst)
	if err != nil {
		writeTreeError(w, err)
		return
	}
	info, err := s.files.info(target, false)
	if err != nil {
		writeTreeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	paths := r.PostForm["path"]
	if len(paths) == 0 {
		writeFieldErrors(w, map[string][]string{"path": {"This field is required."}})
		return
	}
	removed := make([]string, 0, len(paths))
	for _, p := range paths {
		if err := s.files.remove(p); err != nil {
			writeTreeError(w, err)
			return
		}
		removed = append(removed, normalizePath(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// handleDownload streams the file in ChunkSize writes, flushing after each
// so the body goes out with chunked transfer encoding.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	data, err := s.files.readFile(wildcard(r))
	if err != nil {
		writeTreeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for len(data) > 0 {
		n := s.opts.ChunkSize
		if n > len(data) {
			n = len(data)
		}
		if _, err := w.Write(data[:n]); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		data = data[n:]
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	dir := normalizePath(wildcard(r))
	if info, err := s.files.info(dir, false); err != nil {
		writeTreeError(w, err)
		return
	} else if !info.IsDir {
		writeTreeError(w, errNotDir)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Multipart form data expected."})
		return
	}
	var stored []EntryInfo
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
			return
		}
		name := part.FileName()
		if name == "" {
			part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
			return
		}
		target := path.Join(dir, path.Base(name))
		if err := s.files.writeFile(target, data, false); err != nil {
			writeTreeError(w, err)
			return
		}
		info, err := s.files.info(target, false)
		if err != nil {
			writeTreeError(w, err)
			return
		}
		stored = append(stored, info)
	}
	if len(stored) == 0 {
		writeFieldErrors(w, map[string][]string{"file": {"No file was submitted."}})
		return
	}
	if len(stored) == 1 {
		writeJSON(w, http.StatusOK, stored[0])
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	u := User{
		Name:     r.PostForm.Get("name"),
		Username: r.PostForm.Get("username"),
		Email:    r.PostForm.Get("email"),
	}
	missing := map[string][]string{}
	if u.Username == "" {
		missing["username"] = []string{"This field is required."}
	}
	if r.PostForm.Get("password") == "" {
		missing["password"] = []string{"This field is required."}
	}
	if len(missing) > 0 {
		writeFieldErrors(w, missing)
		return
	}

	s.mu.Lock()
	_, exists := s.users[u.Username]
	if !exists {
		s.users[u.Username] = u
	}
	s.mu.Unlock()
	if exists {
		writeFieldErrors(w, map[string][]string{"username": {"User with this username already exists."}})
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// File returns a copy of the stored file at p.
func (s *Server) File(p string) ([]byte, bool) {
	data, err := s.files.readFile(p)
	return data, err == nil
}

// Exists reports whether a file or directory is stored at p.
func (s *Server) Exists(p string) bool {
	_, err := s.files.info(p, false)
	return err == nil
}

// Users returns registered accounts ordered by username.
func (s *Server) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// wildcard returns the decoded remote path captured by a "/*" route.
func wildcard(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if p, err := url.PathUnescape(raw); err == nil {
		return p
	}
	return raw
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return false
	}
	return true
}

func writeTreeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
	case errors.Is(err, errExists):
		writeJSON(w, http.StatusConflict, map[string]any{"detail": "Destination already exists."})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
	}
}

func writeFieldErrors(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"field_errors": fields})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
