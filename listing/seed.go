package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML document accepted by ImportSeed
type Seed struct {
	Listings []Listing `yaml:"listings"`
}

// ParseSeed decodes a seed document, rejecting unknown fields
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	return &seed, nil
}

// ImportSeed loads the seed file at path and saves every listing in it.
// Listings already present are replaced, so importing twice is harmless.
func (s *SQLiteStore) ImportSeed(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed file: %w", err)
	}

	seed, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}

	for i := range seed.Listings {
		if err := s.SaveListing(ctx, &seed.Listings[i]); err != nil {
			return i, fmt.Errorf("importing listing %d: %w", i, err)
		}
	}
	return len(seed.Listings), nil
}
