package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/OCAP2/trackplay/pkg/core"
)

// FileSource reads a JSON file holding either a bare array of samples or an
// object with a "positions" array. The file order is the replay order; the
// EntityID of a query is ignored.
type FileSource struct {
	Path string
}

type positionsDocument struct {
	Positions []core.Sample `json:"positions"`
}

// Load implements Source.
func (f FileSource) Load(ctx context.Context, q Query) ([]core.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}

	samples, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.Path, err)
	}

	out := samples[:0]
	for _, s := range samples {
		if q.inRange(s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoPositions
	}
	return out, nil
}

// Decode parses a sample array or a {"positions": [...]} document.
func Decode(data []byte) ([]core.Sample, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoPositions
	}

	if trimmed[0] == '[' {
		var samples []core.Sample
		if err := json.Unmarshal(trimmed, &samples); err != nil {
			return nil, err
		}
		return samples, nil
	}

	var doc positionsDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, err
	}
	return doc.Positions, nil
}
