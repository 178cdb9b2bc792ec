package driver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileDriver keeps all channels in memory and snapshots them to a single
// JSON file on every write. Suited for single-node deployments without an
// external store; the snapshot is written to a temp file and renamed so a
// crash never leaves a torn file behind.
type FileDriver struct {
	mu      sync.Mutex
	path    string
	channel string
	// data is channel -> table -> key -> encoded record.
	data map[string]map[string]map[string]json.RawMessage
}

// NewFileDriver opens (or creates) the snapshot file at path.
func NewFileDriver(path string) (*FileDriver, error) {
	d := &FileDriver{
		path:    path,
		channel: "gatetrap",
		data:    make(map[string]map[string]map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Fresh store.
	case err != nil:
		return nil, fmt.Errorf("reading data file: %w", err)
	default:
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &d.data); err != nil {
				return nil, fmt.Errorf("parsing data file %s: %w", path, err)
			}
		}
	}
	return d, nil
}

// SetChannel switches the namespace for all subsequent operations.
func (d *FileDriver) SetChannel(name string) {
	d.mu.Lock()
	d.channel = name
	d.mu.Unlock()
}

func (d *FileDriver) table(name string) map[string]json.RawMessage {
	ch, ok := d.data[d.channel]
	if !ok {
		ch = make(map[string]map[string]json.RawMessage)
		d.data[d.channel] = ch
	}
	t, ok := ch[name]
	if !ok {
		t = make(map[string]json.RawMessage)
		ch[name] = t
	}
	return t
}

// Get returns the stored value for key, and whether it exists.
func (d *FileDriver) Get(key, table string) ([]byte, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, ok := d.table(table)[key]
	if !ok {
		return nil, false, nil
	}
	return raw, true, nil
}

// Save upserts the value for key and flushes the snapshot.
func (d *FileDriver) Save(key string, value []byte, table string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.table(table)[key] = json.RawMessage(value)
	return d.flush()
}

// Delete removes key from table and flushes the snapshot.
func (d *FileDriver) Delete(key, table string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.table(table), key)
	return d.flush()
}

// GetAll returns every value in table.
func (d *FileDriver) GetAll(table string) ([][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.table(table)
	out := make([][]byte, 0, len(t))
	for _, raw := range t {
		out = append(out, raw)
	}
	return out, nil
}

// Rebuild truncates all tables of the current channel.
func (d *FileDriver) Rebuild() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(map[string]map[string]json.RawMessage, len(AllTables))
	for _, t := range AllTables {
		ch[t] = make(map[string]json.RawMessage)
	}
	d.data[d.channel] = ch
	return d.flush()
}

// Close flushes the snapshot a final time.
func (d *FileDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flush()
}

// flush writes the snapshot atomically. Caller holds d.mu.
func (d *FileDriver) flush() error {
	raw, err := json.Marshal(d.data)
	if err != nil {
		return fmt.Errorf("encoding data snapshot: %w", err)
	}

	tmp := d.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing data snapshot: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("replacing data snapshot: %w", err)
	}
	return nil
}
