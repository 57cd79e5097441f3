// Package provider loads the external data provider catalog and routes
// market titles to the providers relevant to them.
package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Endpoint describes one callable endpoint of a provider. Path and Params
// values may contain the placeholders {query}, {title} and {keyword}.
type Endpoint struct {
	Method      string            `yaml:"method" json:"method,omitempty"`
	Path        string            `yaml:"path" json:"path"`
	Params      map[string]string `yaml:"params" json:"params,omitempty"`
	Description string            `yaml:"description" json:"description,omitempty"`
}

// Provider is one catalog entry. Matching uses Category, Keywords and
// MatchAll; the remaining fields are only read by the fetcher.
type Provider struct {
	Key      string   `yaml:"-" json:"key"`
	Name     string   `yaml:"name" json:"name"`
	Category string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	MatchAll bool     `yaml:"match_all" json:"match_all"`

	// Host is sent as X-RapidAPI-Host
	Host string `yaml:"host" json:"host,omitempty"`

	// BaseURL overrides https://<Host>
	BaseURL string `yaml:"base_url" json:"base_url,omitempty"`

	DefaultEndpoint string              `yaml:"default_endpoint" json:"default_endpoint,omitempty"`
	Endpoints       map[string]Endpoint `yaml:"endpoints" json:"endpoints,omitempty"`
}

// URL returns the base URL requests to this provider are built on.
func (p Provider) URL() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	if p.Host != "" {
		return "https://" + p.Host
	}
	return ""
}

// Endpoint returns the endpoint used for automatic fetches: DefaultEndpoint
// when set, otherwise the alphabetically first endpoint.
func (p Provider) Endpoint() (string, Endpoint, bool) {
	if p.DefaultEndpoint != "" {
		ep, ok := p.Endpoints[p.DefaultEndpoint]
		return p.DefaultEndpoint, ep, ok
	}
	if len(p.Endpoints) == 0 {
		return "", Endpoint{}, false
	}
	names := make([]string, 0, len(p.Endpoints))
	for name := range p.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0], p.Endpoints[names[0]], true
}

// Info is the short description of a provider used in listings.
type Info struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Catalog is the ordered, read-only set of providers. Order is the document
// order of the catalog file and decides ranking ties in Match.
type Catalog struct {
	path      string
	found     bool
	providers []Provider
	byKey     map[string]int
}

// NewCatalog builds a catalog from providers in the given order.
func NewCatalog(providers ...Provider) *Catalog {
	c := &Catalog{found: true, byKey: make(map[string]int, len(providers))}
	for _, p := range providers {
		c.add(p)
	}
	return c
}

func (c *Catalog) add(p Provider) {
	if p.Name == "" {
		p.Name = p.Key
	}
	c.byKey[p.Key] = len(c.providers)
	c.providers = append(c.providers, p)
}

// LoadCatalog reads the catalog file at path. A missing file yields an empty
// catalog with Found reporting false; it is not an error.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c := NewCatalog()
			c.path = path
			c.found = false
			return c, nil
		}
		return nil, fmt.Errorf("read provider catalog: %w", err)
	}

	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse provider catalog %s: %w", path, err)
	}
	c.path = path
	return c, nil
}

// ParseCatalog decodes a catalog document: one object keyed by provider key.
// A document starting with '{' is JSON; anything else is read as block-style
// YAML. Both decoders keep the document's key order.
func ParseCatalog(data []byte) (*Catalog, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return parseJSONCatalog(trimmed)
	}
	return parseYAMLCatalog(data)
}

var utf8BOM = []byte("\xef\xbb\xbf")

// parseJSONCatalog walks the top-level object token by token so that
// provider order survives decoding.
func parseJSONCatalog(data []byte) (*Catalog, error) {
	c := NewCatalog()
	dec := json.NewDecoder(bytes.NewReader(data))

	if tok, err := dec.Token(); err != nil {
		return nil, err
	} else if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("catalog root must be an object keyed by provider")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok || key == "" {
			return nil, fmt.Errorf("empty provider key at offset %d", dec.InputOffset())
		}
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate provider key %q at offset %d", key, dec.InputOffset())
		}

		var p Provider
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("provider %q: %w", key, err)
		}
		p.Key = key
		c.add(p)
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after catalog object at offset %d", dec.InputOffset())
	}

	return c, nil
}

func parseYAMLCatalog(data []byte) (*Catalog, error) {
	c := NewCatalog()

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return c, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("catalog root must be an object keyed by provider, line %d", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]
		key := keyNode.Value
		if key == "" {
			return nil, fmt.Errorf("empty provider key at line %d", keyNode.Line)
		}
		if _, dup := c.byKey[key]; dup {
			return nil, fmt.Errorf("duplicate provider key %q at line %d", key, keyNode.Line)
		}

		var p Provider
		if err := valueNode.Decode(&p); err != nil {
			return nil, fmt.Errorf("provider %q: %w", key, err)
		}
		p.Key = key
		c.add(p)
	}

	return c, nil
}

// Path returns the file the catalog was loaded from.
func (c *Catalog) Path() string {
	return c.path
}

// Found reports whether the catalog file existed.
func (c *Catalog) Found() bool {
	return c.found
}

// Len returns the number of providers.
func (c *Catalog) Len() int {
	return len(c.providers)
}

// Providers returns the providers in catalog order. The slice is shared and
// must not be modified.
func (c *Catalog) Providers() []Provider {
	return c.providers
}

// Get returns the provider with the given key.
func (c *Catalog) Get(key string) (Provider, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Provider{}, false
	}
	return c.providers[i], true
}

// List returns key, name and category of every provider in catalog order.
func (c *Catalog) List() []Info {
	out := make([]Info, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, Info{Key: p.Key, Name: p.Name, Category: p.Category})
	}
	return out
}

// Categories returns the distinct provider categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, p := range c.providers {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}
