package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the initial content of a Store.
type Seed struct {
	Authors []Author `yaml:"authors"`
	Books   []Book   `yaml:"books"`
}

// DefaultSeed returns the built-in catalog of three authors and eight books.
func DefaultSeed() Seed {
	return Seed{
		Authors: []Author{
			{ID: 1, Name: "J. K. Rowling"},
			{ID: 2, Name: "J. R. R. Tolkien"},
			{ID: 3, Name: "Brent Weeks"},
		},
		Books: []Book{
			{ID: 1, Name: "Harry Potter and the Chamber of Secrets", AuthorID: 1},
			{ID: 2, Name: "Harry Potter and the Prisoner of Azkaban", AuthorID: 1},
			{ID: 3, Name: "Harry Potter and the Goblet of Fire", AuthorID: 1},
			{ID: 4, Name: "The Fellowship of the Ring", AuthorID: 2},
			{ID: 5, Name: "The Two Towers", AuthorID: 2},
			{ID: 6, Name: "The Return of the King", AuthorID: 2},
			{ID: 7, Name: "The Way of Shadows", AuthorID: 3},
			{ID: 8, Name: "Beyond the Shadows", AuthorID: 3},
		},
	}
}

// LoadSeed reads a YAML seed file. Unknown keys are rejected.
func LoadSeed(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	var seed Seed
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return seed, nil
}
