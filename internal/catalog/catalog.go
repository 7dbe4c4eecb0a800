package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alanpac24/Vibebusiness/internal/errinfo"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Agent is one step of the business-planning sequence.
type Agent struct {
	ID             string   `json:"id" yaml:"id"`
	Category       string   `json:"category" yaml:"category"`
	Name           string   `json:"name" yaml:"name"`
	Description    string   `json:"description" yaml:"description"`
	Icon           string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	RequiredInputs []string `json:"required_inputs" yaml:"required_inputs"`
	OptionalInputs []string `json:"optional_inputs,omitempty" yaml:"optional_inputs,omitempty"`
}

// Catalog is the ordered agent list. Order is presentation order.
type Catalog struct {
	Agents []Agent `json:"agents" yaml:"agents"`

	index map[string]int
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// MustDefault is Default for package init paths and tests.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes and validates a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errinfo.ConfigurationInvalid("catalog: payload is empty")
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &errinfo.Error{
			Info: errinfo.ConfigurationInvalid("catalog: decode").Info,
			Err:  err,
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

// New builds a validated catalog from agents, mostly for tests.
func New(agents ...Agent) (*Catalog, error) {
	c := &Catalog{Agents: agents}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks ids and references and rejects dependency cycles.
// It also builds the lookup index.
func (c *Catalog) Validate() error {
	if len(c.Agents) == 0 {
		return errinfo.ConfigurationInvalid("catalog: at least one agent is required")
	}
	index := make(map[string]int, len(c.Agents))
	for i, a := range c.Agents {
		if strings.TrimSpace(a.ID) == "" {
			return errinfo.ConfigurationInvalid(fmt.Sprintf("catalog: agent[%d]: id is required", i))
		}
		if _, dup := index[a.ID]; dup {
			return errinfo.ConfigurationInvalid(fmt.Sprintf("catalog: duplicate agent id %s", a.ID))
		}
		if a.Category == "" || a.Name == "" {
			return errinfo.ConfigurationInvalid(fmt.Sprintf("catalog: agent %s: category and name are required", a.ID))
		}
		index[a.ID] = i
	}
	for _, a := range c.Agents {
		if err := checkRefs(a, "required", a.RequiredInputs, index); err != nil {
			return err
		}
		if err := checkRefs(a, "optional", a.OptionalInputs, index); err != nil {
			return err
		}
	}
	c.index = index
	if cycle := c.findCycle(); cycle != nil {
		c.index = nil
		return errinfo.ConfigurationInvalid("catalog: dependency cycle " + strings.Join(cycle, " -> "))
	}
	return nil
}

func checkRefs(a Agent, kind string, refs []string, index map[string]int) error {
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if ref == a.ID {
			return errinfo.ConfigurationInvalid(fmt.Sprintf("catalog: agent %s lists itself as %s input", a.ID, kind))
		}
		if _, ok := index[ref]; !ok {
			return errinfo.ConfigurationInvalid(fmt.Sprintf("catalog: agent %s %s input %s references unknown agent", a.ID, kind, ref))
		}
		if _, dup := seen[ref]; dup {
			return errinfo.ConfigurationInvalid(fmt.Sprintf("catalog: agent %s lists %s input %s twice", a.ID, kind, ref))
		}
		seen[ref] = struct{}{}
	}
	return nil
}

const (
	white = iota
	grey
	black
)

// findCycle walks required and optional edges depth first and returns the
// first cycle found as a closed path, or nil.
func (c *Catalog) findCycle() []string {
	colour := make([]int, len(c.Agents))
	var stack []string
	var visit func(i int) []string
	visit = func(i int) []string {
		colour[i] = grey
		stack = append(stack, c.Agents[i].ID)
		a := c.Agents[i]
		for _, refs := range [][]string{a.RequiredInputs, a.OptionalInputs} {
			for _, ref := range refs {
				j := c.index[ref]
				switch colour[j] {
				case grey:
					start := 0
					for k, id := range stack {
						if id == ref {
							start = k
							break
						}
					}
					cycle := append([]string(nil), stack[start:]...)
					return append(cycle, ref)
				case white:
					if cycle := visit(j); cycle != nil {
						return cycle
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		colour[i] = black
		return nil
	}
	for i := range c.Agents {
		if colour[i] == white {
			if cycle := visit(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Lookup returns the agent with the given id.
func (c *Catalog) Lookup(id string) (Agent, bool) {
	if c.index == nil {
		for _, a := range c.Agents {
			if a.ID == id {
				return a, true
			}
		}
		return Agent{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return Agent{}, false
	}
	return c.Agents[i], true
}

// Has reports whether id is in the catalog.
func (c *Catalog) Has(id string) bool {
	_, ok := c.Lookup(id)
	return ok
}

// IDs returns agent ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for _, a := range c.Agents {
		ids = append(ids, a.ID)
	}
	return ids
}

// Categories returns distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, a := range c.Agents {
		if _, ok := seen[a.Category]; ok {
			continue
		}
		seen[a.Category] = struct{}{}
		out = append(out, a.Category)
	}
	return out
}

// Len returns the number of agents.
func (c *Catalog) Len() int {
	return len(c.Agents)
}
