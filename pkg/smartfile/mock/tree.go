package mock

import (
	"errors"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	errNotFound = errors.New("not found")
	errNotDir   = errors.New("not a directory")
	errIsDir    = errors.New("is a directory")
	errExists   = errors.New("already exists")
)

type node struct {
	dir     bool
	data    []byte
	modTime time.Time
}

// tree is an in-memory file hierarchy keyed by cleaned absolute path.
type tree struct {
	mu    sync.RWMutex
	nodes map[string]*node
	now   func() time.Time
}

func newTree() *tree {
	t := &tree{nodes: make(map[string]*node), now: time.Now}
	t.nodes["/"] = &node{dir: true, modTime: t.now()}
	return t
}

func normalizePath(p string) string {
	return path.Clean("/" + strings.TrimSpace(p))
}

// mkdirAllLocked creates p and any missing parents. Caller holds the write
// lock.
func (t *tree) mkdirAllLocked(p string) error {
	p = normalizePath(p)
	if n, ok := t.nodes[p]; ok {
		if !n.dir {
			return errNotDir
		}
		return nil
	}
	if err := t.mkdirAllLocked(path.Dir(p)); err != nil {
		return err
	}
	t.nodes[p] = &node{dir: true, modTime: t.now()}
	return nil
}

func (t *tree) mkdirAll(p string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mkdirAllLocked(p)
}

func (t *tree) writeFile(p string, data []byte, createParents bool) error {
	p = normalizePath(p)
	if p == "/" {
		return errIsDir
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	parent := path.Dir(p)
	if createParents {
		if err := t.mkdirAllLocked(parent); err != nil {
			return err
		}
	} else if n, ok := t.nodes[parent]; !ok {
		return errNotFound
	} else if !n.dir {
		return errNotDir
	}
	if n, ok := t.nodes[p]; ok && n.dir {
		return errIsDir
	}
	t.nodes[p] = &node{data: append([]byte(nil), data...), modTime: t.now()}
	return nil
}

func (t *tree) readFile(p string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[normalizePath(p)]
	if !ok {
		return nil, errNotFound
	}
	if n.dir {
		return nil, errIsDir
	}
	return append([]byte(nil), n.data...), nil
}

// move relocates src into the directory dst, keeping its base name.
func (t *tree) move(src, dst string) (string, error) {
	src, dst = normalizePath(src), normalizePath(dst)
	t.mu.Lock()
	defer t.mu.Unlock()
	if src == "/" {
		return "", errIsDir
	}
	if _, ok := t.nodes[src]; !ok {
		return "", errNotFound
	}
	d, ok := t.nodes[dst]
	if !ok {
		return "", errNotFound
	}
	if !d.dir {
		return "", errNotDir
	}
	target := path.Join(dst, path.Base(src))
	if target == src {
		return target, nil
	}
	if _, ok := t.nodes[target]; ok {
		return "", errExists
	}
	if strings.HasPrefix(dst+"/", src+"/") {
		return "", errors.New("cannot move a directory into itself")
	}
	moved := make(map[string]*node)
	for p, n := range t.nodes {
		if p == src || strings.HasPrefix(p, src+"/") {
			moved[target+strings.TrimPrefix(p, src)] = n
			delete(t.nodes, p)
		}
	}
	for p, n := range moved {
		t.nodes[p] = n
	}
	return target, nil
}

// remove deletes p and everything below it.
func (t *tree) remove(p string) error {
	p = normalizePath(p)
	if p == "/" {
		return errIsDir
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.nodes[p]; !ok {
		return errNotFound
	}
	for k := range t.nodes {
		if k == p || strings.HasPrefix(k, p+"/") {
			delete(t.nodes, k)
		}
	}
	return nil
}

// EntryInfo is the JSON shape of /path/info/ responses.
type EntryInfo struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsDir    bool        `json:"isdir"`
	IsFile   bool        `json:"isfile"`
	Size     int64       `json:"size"`
	Mime     string      `json:"mime"`
	Time     string      `json:"time"`
	Children []EntryInfo `json:"children,omitempty"`
}

func (t *tree) info(p string, children bool) (EntryInfo, error) {
	p = normalizePath(p)
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[p]
	if !ok {
		return EntryInfo{}, errNotFound
	}
	out := describe(p, n)
	if children && n.dir {
		out.Children = []EntryInfo{}
		for k, c := range t.nodes {
			if k != "/" && path.Dir(k) == p {
				out.Children = append(out.Children, describe(k, c))
			}
		}
		sort.Slice(out.Children, func(i, j int) bool { return out.Children[i].Path < out.Children[j].Path })
	}
	return out, nil
}

func describe(p string, n *node) EntryInfo {
	info := EntryInfo{
		Name:   path.Base(p),
		Path:   p,
		IsDir:  n.dir,
		IsFile: !n.dir,
		Time:   n.modTime.UTC().Format(time.RFC3339),
	}
	if p == "/" {
		info.Name = ""
	}
	if n.dir {
		info.Mime = "application/x-directory"
		return info
	}
	info.Size = int64(len(n.data))
	info.Mime = mime.TypeByExtension(path.Ext(p))
	if info.Mime == "" {
		info.Mime = "application/octet-stream"
	}
	return info
}
