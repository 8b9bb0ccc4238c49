// Package items manages a collection of stand-alone prompt/response records.
package items

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cchalm/gpt-cli/internal/completion"
	"github.com/cchalm/gpt-cli/internal/filesystem"
	"github.com/cchalm/gpt-cli/internal/transcript"
)

var (
	// ErrNotFound is returned when no item has the requested id
	ErrNotFound = errors.New("item not found")
	// ErrMalformedData is returned by Load when the backing file cannot be decoded
	ErrMalformedData = filesystem.ErrMalformedData
)

// Item is a prompt and the completion it produced
type Item struct {
	ID       int    `json:"id"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// FileStore keeps the collection as an indented JSON array
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored collection. A missing or blank file yields an empty collection.
func (fs *FileStore) Load() ([]Item, error) {
	b, ok, err := filesystem.ReadIfExists(fs.path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Item{}, nil
	}
	var items []Item
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w: %w", fs.path, ErrMalformedData, err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// Save replaces the stored collection with items
func (fs *FileStore) Save(items []Item) error {
	if items == nil {
		items = []Item{}
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}
	err = filesystem.WriteAtomic(fs.path, append(b, '\n'), 0644)
	if err != nil {
		return fmt.Errorf("failed to save items: %w", err)
	}
	return nil
}

// NextID returns one more than the largest id in items, or 1 if items is empty
func NextID(items []Item) int {
	highest := 0
	for _, it := range items {
		if it.ID > highest {
			highest = it.ID
		}
	}
	return highest + 1
}

// Create asks completer to answer prompt and appends the result as a new item. On error items is returned unchanged.
func Create(ctx context.Context, items []Item, prompt string, completer completion.Completer) ([]Item, Item, error) {
	response, err := complete(ctx, prompt, completer)
	if err != nil {
		return items, Item{}, err
	}
	item := Item{ID: NextID(items), Prompt: prompt, Response: response}
	return append(items, item), item, nil
}

// Update replaces the prompt of the item with the given id and refreshes its response. If the id is absent, or the
// completion fails, items is returned unchanged.
func Update(ctx context.Context, items []Item, id int, prompt string, completer completion.Completer) ([]Item, Item, error) {
	i := indexOf(items, id)
	if i < 0 {
		return items, Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	response, err := complete(ctx, prompt, completer)
	if err != nil {
		return items, Item{}, err
	}
	items[i].Prompt = prompt
	items[i].Response = response
	return items, items[i], nil
}

// Delete returns a copy of items without the item with the given id, preserving the order of the rest
func Delete(items []Item, id int) ([]Item, error) {
	i := indexOf(items, id)
	if i < 0 {
		return items, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	out := make([]Item, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...), nil
}

func indexOf(items []Item, id int) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// complete sends prompt as a single user message
func complete(ctx context.Context, prompt string, completer completion.Completer) (string, error) {
	response, err := completer.Complete(ctx, []transcript.Message{transcript.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("failed to complete prompt: %w", err)
	}
	return response, nil
}
