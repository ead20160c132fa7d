// File path: internal/data/orchestrator/options.go
package orchestrator

import "github.com/nicodishanthj/planbuilder/internal/docstore"

type Option func(*options)

type options struct {
	collection docstore.Collection
}

// WithCollection injects a ready collection instead of opening the configured
// backend. Primarily used in tests.
func WithCollection(collection docstore.Collection) Option {
	return func(o *options) {
		o.collection = collection
	}
}
