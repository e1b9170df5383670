package cards

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Good is a single commodity entry of the catalog.
type Good struct {
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
	Count int    `yaml:"count"`
}

// CategoryEntry groups the goods of one caravan type.
type CategoryEntry struct {
	Category Category `yaml:"category"`
	Goods    []Good   `yaml:"goods"`
}

// ActionEntry describes one action card type.
type ActionEntry struct {
	Name        ActionKind `yaml:"name"`
	Count       int        `yaml:"count"`
	Description string     `yaml:"description"`
}

// Catalog is the static definition of every card type in the game.
type Catalog struct {
	Commodities []CategoryEntry `yaml:"commodities"`
	Actions     []ActionEntry   `yaml:"actions"`
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = LoadCatalog(bytes.NewReader(defaultCatalogYAML))
	})
	if defaultCatalogErr != nil {
		panic(fmt.Sprintf("embedded card catalog is invalid: %v", defaultCatalogErr))
	}
	return defaultCatalog
}

// LoadCatalog parses and validates a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks that every entry is well formed.
func (c *Catalog) Validate() error {
	seen := make(map[Category]bool, len(c.Commodities))
	for _, entry := range c.Commodities {
		if !entry.Category.Valid() {
			return fmt.Errorf("unknown category %q", entry.Category)
		}
		if seen[entry.Category] {
			return fmt.Errorf("category %s declared twice", entry.Category)
		}
		seen[entry.Category] = true
		for _, g := range entry.Goods {
			if g.Name == "" {
				return fmt.Errorf("category %s has a good without a name", entry.Category)
			}
			if g.Value <= 0 {
				return fmt.Errorf("good %q must have a positive value", g.Name)
			}
			if g.Count <= 0 {
				return fmt.Errorf("good %q must have a positive count", g.Name)
			}
		}
	}
	for _, a := range c.Actions {
		if !a.Name.Valid() {
			return fmt.Errorf("unknown action %q", a.Name)
		}
		if a.Count <= 0 {
			return fmt.Errorf("action %q must have a positive count", a.Name)
		}
	}
	return nil
}

// Size returns the number of cards BuildDeck will mint.
func (c *Catalog) Size() int {
	n := 0
	for _, entry := range c.Commodities {
		for _, g := range entry.Goods {
			n += g.Count
		}
	}
	for _, a := range c.Actions {
		n += a.Count
	}
	return n
}

// BuildDeck expands the catalog into concrete cards. Ids start at zero and
// increase in declaration order: commodities first, then actions. The result
// is unshuffled.
func BuildDeck(c *Catalog) []Card {
	deck := make([]Card, 0, c.Size())
	id := 0
	for _, entry := range c.Commodities {
		for _, g := range entry.Goods {
			for i := 0; i < g.Count; i++ {
				deck = append(deck, Card{
					ID:       id,
					Kind:     KindCommodity,
					Name:     g.Name,
					Category: entry.Category,
					Value:    g.Value,
				})
				id++
			}
		}
	}
	for _, a := range c.Actions {
		for i := 0; i < a.Count; i++ {
			deck = append(deck, Card{
				ID:          id,
				Kind:        KindAction,
				Name:        string(a.Name),
				Action:      a.Name,
				Description: a.Description,
			})
			id++
		}
	}
	return deck
}
