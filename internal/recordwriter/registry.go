package recordwriter

import (
	"fmt"

	"github.com/jittakal/kafeventstore/pkg/writer"
)

// Registry resolves a writer.Provider by its configured class name,
// avoiding reflection-based construction.
type Registry struct {
	providers map[string]writer.Provider
}

// NewRegistry builds a registry from the given name-to-provider mapping.
func NewRegistry(providers map[string]writer.Provider) *Registry {
	return &Registry{providers: providers}
}

// DefaultRegistry constructs a registry with both built-in providers
// ("parquet" and "avro") wired in.
func DefaultRegistry(parquetCompression string) (*Registry, error) {
	avro, err := NewAvroProvider()
	if err != nil {
		return nil, err
	}
	return NewRegistry(map[string]writer.Provider{
		"parquet": NewParquetProvider(parquetCompression),
		"avro":    avro,
	}), nil
}

// Get resolves name to a Provider.
func (r *Registry) Get(name string) (writer.Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown record_writer_provider_class %q", name)
	}
	return p, nil
}
