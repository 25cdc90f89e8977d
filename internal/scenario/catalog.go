package scenario

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtin embed.FS

// ErrNotFound is returned for an unknown scenario id.
var ErrNotFound = errors.New("scenario not found")

// Catalog holds validated scenarios keyed by id. It is safe for concurrent
// use; scenarios are never mutated after loading.
type Catalog struct {
	mu        sync.RWMutex
	scenarios map[string]*Scenario
	logger    *logrus.Logger
}

// NewCatalog returns a catalog preloaded with the built-in scenarios.
func NewCatalog(logger *logrus.Logger) (*Catalog, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Catalog{scenarios: map[string]*Scenario{}, logger: logger}
	if err := c.loadFS(builtin, "builtin"); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDir adds every .yaml/.yml file in dir, replacing scenarios with the
// same id. A missing directory is not an error.
func (c *Catalog) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		c.logger.Warnf("scenario directory %s does not exist, using built-in scenarios only", dir)
		return nil
	}
	return c.loadFS(os.DirFS(dir), ".")
}

func (c *Catalog) loadFS(fsys fs.FS, root string) error {
	return fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		f, err := fsys.Open(path)
		if err != nil {
			return fmt.Errorf("open scenario %s: %w", path, err)
		}
		defer f.Close()
		s, err := Decode(f)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", path, err)
		}
		c.Add(s)
		c.logger.WithFields(logrus.Fields{"scenario": s.ID, "file": path}).Debug("scenario loaded")
		return nil
	})
}

// Decode parses and validates one scenario document.
func Decode(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if s.Delivery == "" {
		s.Delivery = DeliveryAuto
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Add stores a scenario that has already been validated.
func (c *Catalog) Add(s *Scenario) {
	c.mu.Lock()
	c.scenarios[s.ID] = s
	c.mu.Unlock()
}

// Get returns the scenario with the given id.
func (c *Catalog) Get(id string) (*Scenario, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s, nil
}

// Summary is the listing entry of a scenario.
type Summary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	MaxPlayers int    `json:"maxPlayers"`
}

// List returns all scenarios sorted by id.
func (c *Catalog) List() []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Summary, 0, len(c.scenarios))
	for _, s := range c.scenarios {
		out = append(out, Summary{ID: s.ID, Title: s.Title, MaxPlayers: len(s.Roles)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
