package coach

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultVoice is the prebuilt Live voice used when a coach does not name one
const DefaultVoice = "Zephyr"

// Coach is a persona the learner talks to
type Coach struct {
	Name    string `yaml:"name" json:"name"`
	Voice   string `yaml:"voice" json:"voice"`
	Neutral string `yaml:"neutral" json:"neutral"` // avatar image while silent
	Talking string `yaml:"talking" json:"talking"` // avatar image while speaking
}

// Image returns the avatar image for the given speaking state
func (c Coach) Image(speaking bool) string {
	if speaking {
		return c.Talking
	}
	return c.Neutral
}

// BuiltIn returns the coaches that are always available
func BuiltIn() []Coach {
	return []Coach{
		{
			Name:    "Eva",
			Voice:   DefaultVoice,
			Neutral: "https://api.dicebear.com/9.x/notionists/png?seed=Eva&backgroundColor=e5e7eb",
			Talking: "https://api.dicebear.com/9.x/notionists/png?seed=Eva&backgroundColor=ffdfbf&mouth=smile",
		},
		{
			Name:    "Bot",
			Voice:   DefaultVoice,
			Neutral: "https://api.dicebear.com/9.x/bottts/png?seed=Bot&backgroundColor=e5e7eb",
			Talking: "https://api.dicebear.com/9.x/bottts/png?seed=Bot&backgroundColor=ffdfbf&mouth=smile",
		},
	}
}

// Catalog is a case-insensitive set of coaches keyed by name
type Catalog struct {
	coaches map[string]Coach
}

// NewCatalog creates a catalog holding the built-in coaches plus extra.
// Extra coaches replace built-ins with the same name.
func NewCatalog(extra ...Coach) *Catalog {
	c := &Catalog{coaches: make(map[string]Coach)}
	for _, co := range BuiltIn() {
		c.add(co)
	}
	for _, co := range extra {
		c.add(co)
	}
	return c
}

func (c *Catalog) add(co Coach) {
	if co.Voice == "" {
		co.Voice = DefaultVoice
	}
	c.coaches[strings.ToLower(co.Name)] = co
}

// Lookup finds a coach by name
func (c *Catalog) Lookup(name string) (Coach, error) {
	co, ok := c.coaches[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Coach{}, fmt.Errorf("coach: unknown coach %q", name)
	}
	return co, nil
}

// List returns all coaches sorted by name
func (c *Catalog) List() []Coach {
	out := make([]Coach, 0, len(c.coaches))
	for _, co := range c.coaches {
		out = append(out, co)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// File is the top-level structure of a coaches YAML file.
//
// Example:
//
//	coaches:
//	  - name: "Max"
//	    voice: "Puck"
//	    neutral: "https://example.com/max.png"
//	    talking: "https://example.com/max-talking.png"
type File struct {
	Coaches []Coach `yaml:"coaches"`
}

// LoadCatalogFile reads a coaches YAML file and merges it over the built-ins
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("coach: open coaches file %q: %w", path, err)
	}
	defer f.Close()

	cat, err := LoadCatalogFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("coach: parse coaches file %q: %w", path, err)
	}
	return cat, nil
}

// LoadCatalogFromReader parses coaches YAML from r and merges it over the built-ins
func LoadCatalogFromReader(r io.Reader) (*Catalog, error) {
	var cf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("coach: decode coaches yaml: %w", err)
	}

	for i, co := range cf.Coaches {
		if strings.TrimSpace(co.Name) == "" {
			return nil, fmt.Errorf("coach: entry %d has no name", i)
		}
		if co.Neutral == "" || co.Talking == "" {
			return nil, fmt.Errorf("coach: %q needs both neutral and talking images", co.Name)
		}
	}
	return NewCatalog(cf.Coaches...), nil
}
