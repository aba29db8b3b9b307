package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item types recognized by the sequencer. Anything that is not one of the two
// test categories is treated as filler when building blocks.
const (
	TypePartitive = "test_partitive_plural"
	TypeSubcat    = "test_subcategorization"
	TypeFiller    = "filler"
)

// ErrListNotFound is returned when the materials file does not define the
// requested list.
var ErrListNotFound = errors.New("list not found in materials")

// Item is one sentence/question unit from the materials file. Items are
// immutable once loaded; the sequencer only ever references them.
type Item struct {
	ItemID        string   `json:"item_id" yaml:"item_id"`
	SetID         string   `json:"set_id" yaml:"set_id"`
	Type          string   `json:"type" yaml:"type"`
	Structure     string   `json:"structure" yaml:"structure"`
	Condition     string   `json:"condition" yaml:"condition"`
	Tokens        []string `json:"tokens" yaml:"tokens"`
	Question      string   `json:"question" yaml:"question"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer"`
}

// IsTest reports whether the item belongs to one of the two test categories.
func (it *Item) IsTest() bool {
	return it.Type == TypePartitive || it.Type == TypeSubcat
}

// Bank holds the full item pool and the named lists that partition it.
type Bank struct {
	Items []Item              `json:"items" yaml:"items"`
	Lists map[string][]string `json:"lists" yaml:"lists"`

	byID map[string]*Item
}

// LoadBank reads a materials file. The format is chosen by extension:
// .yaml/.yml is parsed as YAML, everything else as JSON (the original
// materials are JSON).
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read materials file: %w", err)
	}

	var bank Bank
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &bank)
	default:
		err = json.Unmarshal(data, &bank)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse materials file: %w", err)
	}

	if err := bank.validate(); err != nil {
		return nil, err
	}
	bank.Reindex()
	return &bank, nil
}

func (b *Bank) validate() error {
	if len(b.Items) == 0 {
		return errors.New("materials contain no items")
	}
	seen := make(map[string]bool, len(b.Items))
	for i := range b.Items {
		it := &b.Items[i]
		if it.ItemID == "" {
			return fmt.Errorf("item at position %d has no item_id", i)
		}
		if seen[it.ItemID] {
			return fmt.Errorf("duplicate item_id %q", it.ItemID)
		}
		seen[it.ItemID] = true
		if len(it.Tokens) == 0 {
			return fmt.Errorf("item %q has no tokens", it.ItemID)
		}
		if (it.Question == "") != (it.CorrectAnswer == "") {
			return fmt.Errorf("item %q must carry question and correct_answer together", it.ItemID)
		}
		if it.CorrectAnswer != "" && it.CorrectAnswer != "Yes" && it.CorrectAnswer != "No" {
			return fmt.Errorf("item %q has correct_answer %q, want Yes or No", it.ItemID, it.CorrectAnswer)
		}
	}
	return nil
}

// Reindex rebuilds the id lookup. LoadBank calls it; programmatically
// constructed banks must call it before Resolve or Item.
func (b *Bank) Reindex() {
	b.byID = make(map[string]*Item, len(b.Items))
	for i := range b.Items {
		b.byID[b.Items[i].ItemID] = &b.Items[i]
	}
}

// Item looks up an item by identifier.
func (b *Bank) Item(id string) (*Item, bool) {
	it, ok := b.byID[id]
	return it, ok
}

// Resolve maps a named list to its items. Identifiers the bank does not know
// are skipped, matching the original instrument's behavior; a missing list is
// a configuration error.
func (b *Bank) Resolve(listName string) ([]*Item, error) {
	ids, ok := b.Lists[listName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrListNotFound, listName)
	}
	items := make([]*Item, 0, len(ids))
	for _, id := range ids {
		if it, found := b.byID[id]; found {
			items = append(items, it)
		}
	}
	return items, nil
}

// ListNames returns the names of all defined lists.
func (b *Bank) ListNames() []string {
	names := make([]string, 0, len(b.Lists))
	for name := range b.Lists {
		names = append(names, name)
	}
	return names
}
