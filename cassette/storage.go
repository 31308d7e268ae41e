package cassette

import "context"

// Storage loads and saves cassettes by name.
//
// Load returns an empty list and no error when the cassette does not exist;
// errors are reserved for I/O failures and should be *StorageError. Save
// fully replaces whatever was stored under name before.
type Storage interface {
	Load(ctx context.Context, name string) ([]Interaction, error)
	Save(ctx context.Context, name string, interactions []Interaction) error
}
