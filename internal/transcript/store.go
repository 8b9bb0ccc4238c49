package transcript

import (
	"fmt"

	"github.com/cchalm/gpt-cli/internal/filesystem"
)

// ErrMalformedData is returned by Load when the backing file has content that cannot be decoded
var ErrMalformedData = filesystem.ErrMalformedData

// FileStore keeps a transcript in a single file. The file is opened and closed within each call.
type FileStore struct {
	path  string
	codec Codec
}

// NewFileStore creates a store backed by the file at path, encoded with codec
func NewFileStore(path string, codec Codec) *FileStore {
	return &FileStore{path: path, codec: codec}
}

// Path returns the backing file path
func (fs *FileStore) Path() string {
	return fs.path
}

// Load returns the stored transcript. A missing or blank file yields an empty transcript.
func (fs *FileStore) Load() ([]Message, error) {
	b, ok, err := filesystem.ReadIfExists(fs.path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Message{}, nil
	}
	msgs, err := fs.codec.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", fs.path, err)
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// Save replaces the stored transcript with msgs
func (fs *FileStore) Save(msgs []Message) error {
	b, err := fs.codec.Encode(msgs)
	if err != nil {
		return err
	}
	err = filesystem.WriteAtomic(fs.path, b, 0644)
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// Clear deletes the backing file
func (fs *FileStore) Clear() error {
	return filesystem.RemoveIfExists(fs.path)
}
