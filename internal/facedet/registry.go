package facedet

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	ferrors "github.com/jvaltonen/facewatch-go/internal/errors"
	"github.com/jvaltonen/facewatch-go/internal/logging"
)

// Registry holds the known identities and their face encodings. Names and
// encodings are parallel: encoding i belongs to Names[i]. One person may
// appear under several entries when multiple reference images were enrolled.
type Registry struct {
	Names     []string
	Encodings [][]float64
}

type registryFile struct {
	Names     []string    `json:"names"`
	Encodings [][]float64 `json:"encodings"`
}

// LoadRegistry reads known encodings from a JSON file. A missing file is not
// an error: the system runs with an empty registry and every face resolves
// to Unknown.
func LoadRegistry(path string) (*Registry, error) {
	return loadRegistry(path, logging.ForService("facedet"))
}

func loadRegistry(path string, log *slog.Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Warn("encodings file not found, starting with empty registry", "path", path)
		return &Registry{}, nil
	}
	if err != nil {
		return nil, ferrors.New(err).Component("facedet").Category(ferrors.CategoryFileIO).
			Context("path", path).Build()
	}

	var parsed registryFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, ferrors.New(fmt.Errorf("parsing encodings file: %w", err)).
			Component("facedet").Category(ferrors.CategoryFileIO).
			Context("path", path).Build()
	}
	if len(parsed.Names) != len(parsed.Encodings) {
		return nil, ferrors.Newf("encodings file has %d names but %d encodings",
			len(parsed.Names), len(parsed.Encodings)).
			Component("facedet").Category(ferrors.CategoryValidation).
			Context("path", path).Build()
	}

	log.Info("loaded known face encodings", "path", path, "count", len(parsed.Names))
	return &Registry{Names: parsed.Names, Encodings: parsed.Encodings}, nil
}

// Size returns the number of enrolled encodings.
func (r *Registry) Size() int { return len(r.Names) }

// KnownIdentities returns the distinct names in enrollment order.
func (r *Registry) KnownIdentities() []string {
	seen := make(map[string]struct{}, len(r.Names))
	var out []string
	for _, name := range r.Names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
