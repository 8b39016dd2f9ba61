// Package content provides the word/category provider the game core draws
// its secrets from: each category carries word pairs of a true word, a
// close decoy, and an optional hint.
package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/parlorgames/undercover/internal/game/random"
	"github.com/parlorgames/undercover/internal/game/room"
)

// WordPair is one secret/decoy pairing. Hint may be empty.
type WordPair struct {
	Word string `yaml:"word" json:"word"`
	Ref  string `yaml:"ref" json:"ref"`
	Hint string `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// Category is a themed word pack loaded from one YAML file.
type Category struct {
	ID    string     `yaml:"id" json:"id"`
	Name  string     `yaml:"name" json:"name"`
	Emoji string     `yaml:"emoji" json:"emoji"`
	Pairs []WordPair `yaml:"pairs" json:"-"`
}

// Info is the category metadata exposed to clients.
type Info struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
}

// Provider is the contract the game core consumes. A lookup may fail and
// the caller must translate the failure into a start error rather than
// crash; it is also the only call a handler suspends on, so it takes a
// context.
type Provider interface {
	// ActiveCategories lists the categories available for new games.
	ActiveCategories() []Info
	// RandomWordPair picks a uniformly random pair from the category.
	// Easy difficulty restricts the pick to hinted pairs when the category
	// has any.
	RandomWordPair(ctx context.Context, categoryID string, difficulty room.Difficulty) (WordPair, error)
}

// Validate checks the category invariants.
//
// Postcondition: Returns nil iff ID and Name are non-empty and every pair
// has a non-empty word and ref.
func (c *Category) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("content category: id must not be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("content category %q: name must not be empty", c.ID)
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("content category %q: must have at least one word pair", c.ID)
	}
	for i, p := range c.Pairs {
		if p.Word == "" || p.Ref == "" {
			return fmt.Errorf("content category %q: pair %d must have word and ref", c.ID, i)
		}
	}
	return nil
}

// Library is an in-memory Provider backed by YAML word packs.
type Library struct {
	categories map[string]*Category
	order      []string // file-load order, for stable listings
	src        random.Source
}

// NewLibrary creates a Library over the given categories.
//
// Precondition: src must be non-nil; category ids must be unique.
func NewLibrary(categories []*Category, src random.Source) (*Library, error) {
	lib := &Library{
		categories: make(map[string]*Category, len(categories)),
		src:        src,
	}
	for _, c := range categories {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := lib.categories[c.ID]; dup {
			return nil, fmt.Errorf("content category %q: duplicate id", c.ID)
		}
		lib.categories[c.ID] = c
		lib.order = append(lib.order, c.ID)
	}
	return lib, nil
}

// LoadLibrary reads every .yaml word pack in dir and builds a Library.
func LoadLibrary(dir string, src random.Source) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading content dir %q: %w", dir, err)
	}

	var categories []*Category
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var c Category
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		categories = append(categories, &c)
	}
	return NewLibrary(categories, src)
}

// ActiveCategories lists category metadata in load order.
func (l *Library) ActiveCategories() []Info {
	infos := make([]Info, 0, len(l.order))
	for _, id := range l.order {
		c := l.categories[id]
		infos = append(infos, Info{ID: c.ID, Name: c.Name, Emoji: c.Emoji})
	}
	return infos
}

// RandomWordPair picks a pair from the category.
//
// Postcondition: Returns an error for an unknown category. On easy
// difficulty the pick is restricted to hinted pairs; a category with no
// hinted pairs falls back to the full pool.
func (l *Library) RandomWordPair(_ context.Context, categoryID string, difficulty room.Difficulty) (WordPair, error) {
	c, ok := l.categories[categoryID]
	if !ok {
		return WordPair{}, fmt.Errorf("unknown content category %q", categoryID)
	}

	pool := c.Pairs
	if difficulty == room.DifficultyEasy {
		var hinted []WordPair
		for _, p := range c.Pairs {
			if p.Hint != "" {
				hinted = append(hinted, p)
			}
		}
		if len(hinted) > 0 {
			pool = hinted
		}
	}
	return pool[l.src.Intn(len(pool))], nil
}
