package mock

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedEntry describes a file or directory loaded into the mock at start-up.
// Content is used verbatim; Base64 takes precedence when set.
type SeedEntry struct {
	Path    string `yaml:"path"`
	Dir     bool   `yaml:"dir,omitempty"`
	Content string `yaml:"content,omitempty"`
	Base64  string `yaml:"base64,omitempty"`
}

// SeedFile is the on-disk seed document.
type SeedFile struct {
	Files []SeedEntry `yaml:"files"`
	Users []SeedUser  `yaml:"users,omitempty"`
}

// SeedUser pre-registers an account so /users/add/ conflicts can be
// exercised.
type SeedUser struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
}

// LoadSeed reads a YAML seed document.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mock: read seed %s: %w", path, err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("mock: parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// Seed loads files and directories, creating parents as needed.
func (s *Server) Seed(entries []SeedEntry) error {
	for _, e := range entries {
		if strings.TrimSpace(e.Path) == "" {
			return fmt.Errorf("mock: seed entry missing path")
		}
		if e.Dir {
			if err := s.files.mkdirAll(e.Path); err != nil {
				return fmt.Errorf("mock: seed %s: %w", e.Path, err)
			}
			continue
		}
		data := []byte(e.Content)
		if e.Base64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(e.Base64)
			if err != nil {
				return fmt.Errorf("mock: seed %s: decode base64: %w", e.Path, err)
			}
			data = decoded
		}
		if err := s.files.writeFile(e.Path, data, true); err != nil {
			return fmt.Errorf("mock: seed %s: %w", e.Path, err)
		}
	}
	return nil
}

// ApplySeed loads both files and users from a seed document.
func (s *Server) ApplySeed(seed *SeedFile) error {
	if seed == nil {
		return nil
	}
	if err := s.Seed(seed.Files); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range seed.Users {
		if u.Username == "" {
			return fmt.Errorf("mock: seed user missing username")
		}
		s.users[u.Username] = User{Name: u.Name, Username: u.Username, Email: u.Email}
	}
	return nil
}
