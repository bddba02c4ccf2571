package index

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/jwynia/corticai/pkg/value"
)

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// Metadata is the snapshot metadata block.
type Metadata struct {
	Version         int       `json:"version"`
	TotalEntities   int       `json:"totalEntities"`
	TotalAttributes int       `json:"totalAttributes"`
	TotalValues     int       `json:"totalValues"`
	Checksum        string    `json:"checksum"`
	SavedAt         time.Time `json:"savedAt"`
}

// document is the on-disk snapshot:
//
//	{"entities": {entity: {attribute: [value, ...]}}, "metadata": {...}}
//
// Entities are sorted by id; attributes and values keep insertion order.
// The checksum is the blake2b-256 of the compact entities block.
type document struct {
	Entities json.RawMessage `json:"entities"`
	Metadata Metadata        `json:"metadata"`
}

// Save writes the whole index to path atomically: the snapshot goes to a
// temporary file that is synced and then renamed over path.
func (idx *AttributeIndex) Save(path string) (err error) {
	started := time.Now()
	defer func() { recordOperation("save", started, err) }()

	idx.mu.RLock()
	entities, encErr := idx.encodeEntitiesUnlocked()
	stats := idx.statisticsUnlocked()
	idx.mu.RUnlock()
	if encErr != nil {
		return serializationErr("encode entities: %v", encErr)
	}

	doc := document{
		Entities: entities,
		Metadata: Metadata{
			Version:         SnapshotVersion,
			TotalEntities:   stats.TotalEntities,
			TotalAttributes: stats.TotalAttributes,
			TotalValues:     stats.TotalValues,
			Checksum:        checksum(entities),
			SavedAt:         time.Now().UTC(),
		},
	}
	data, encErr := json.MarshalIndent(doc, "", "  ")
	if encErr != nil {
		return serializationErr("encode snapshot: %v", encErr)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return err
	}
	idx.log.Debug("index saved",
		zap.String("path", path),
		zap.Int("entities", stats.TotalEntities),
		zap.Int("values", stats.TotalValues))
	return nil
}

// Load replaces the whole index with the snapshot at path. On any error the
// index is left unchanged.
func (idx *AttributeIndex) Load(path string) (err error) {
	started := time.Now()
	defer func() { recordOperation("load", started, err) }()

	data, err := os.ReadFile(path)
	if err != nil {
		return ioErr("read", path, err)
	}

	fresh, meta, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	idx.entities = fresh.entities
	idx.byValue = fresh.byValue
	idx.holders = fresh.holders
	idx.mu.Unlock()

	idx.log.Debug("index loaded",
		zap.String("path", path),
		zap.Int("entities", meta.TotalEntities),
		zap.Time("saved_at", meta.SavedAt))
	return nil
}

// encodeEntitiesUnlocked renders the entities block in compact JSON.
func (idx *AttributeIndex) encodeEntitiesUnlocked() (json.RawMessage, error) {
	ids := make([]string, 0, len(idx.entities))
	for id := range idx.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, id); err != nil {
			return nil, err
		}
		buf.WriteString(":{")
		e := idx.entities[id]
		for j, attribute := range e.order {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(&buf, attribute); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			if err := writeJSON(&buf, e.values[attribute]); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

func checksum(entities []byte) string {
	sum := blake2b.Sum256(entities)
	return hex.EncodeToString(sum[:])
}

// decodeSnapshot parses and verifies a snapshot into a detached index.
func decodeSnapshot(data []byte) (*AttributeIndex, Metadata, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, Metadata{}, serializationErr("%v", err)
	}
	meta := doc.Metadata
	if meta.Version < 1 || meta.Version > SnapshotVersion {
		return nil, meta, serializationErr("unsupported version %d", meta.Version)
	}
	if len(doc.Entities) == 0 {
		return nil, meta, serializationErr("missing entities block")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, doc.Entities); err != nil {
		return nil, meta, serializationErr("%v", err)
	}
	if got := checksum(compact.Bytes()); got != meta.Checksum {
		return nil, meta, serializationErr("checksum mismatch: stored %q, computed %q", meta.Checksum, got)
	}

	var entities map[string]*value.Properties
	if err := json.Unmarshal(doc.Entities, &entities); err != nil {
		return nil, meta, serializationErr("entities: %v", err)
	}

	fresh := New()
	for id, attrs := range entities {
		if id == "" {
			return nil, meta, serializationErr("empty entity id")
		}
		if attrs == nil || attrs.Len() == 0 {
			return nil, meta, serializationErr("entity %q has no attributes", id)
		}
		var rangeErr error
		attrs.Range(func(attribute string, list value.Value) bool {
			items, ok := list.AsList()
			if !ok || len(items) == 0 {
				rangeErr = serializationErr("attribute %q of %q is not a non-empty list", attribute, id)
				return false
			}
			for _, v := range items {
				if err := validateEntry(id, attribute, v); err != nil {
					rangeErr = serializationErr("%v", err)
					return false
				}
				fresh.addUnlocked(id, attribute, v)
			}
			return true
		})
		if rangeErr != nil {
			return nil, meta, rangeErr
		}
	}

	stats := fresh.statisticsUnlocked()
	if stats.TotalEntities != meta.TotalEntities ||
		stats.TotalAttributes != meta.TotalAttributes ||
		stats.TotalValues != meta.TotalValues {
		return nil, meta, serializationErr("counts do not match metadata")
	}
	return fresh, meta, nil
}

// writeFileAtomic writes data to a temp file, syncs it, and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ioErr("mkdir", dir, err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return ioErr("create", tmpPath, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return ioErr("write", tmpPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return ioErr("sync", tmpPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return ioErr("close", tmpPath, err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return ioErr("rename", path, err)
	}
	return syncDir(dir)
}

// syncDir fsyncs a directory so a completed rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return ioErr("open", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return ioErr("sync", dir, err)
	}
	return nil
}
