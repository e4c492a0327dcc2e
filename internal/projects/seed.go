package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadSeed decodes a JSON array of projects
func ReadSeed(r io.Reader) ([]*Project, error) {
	var projects []*Project
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&projects); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	for _, p := range projects {
		if err := validateSeed(p); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// LoadSeed reads the seed file at path into seeder and returns how many
// projects were inserted
func LoadSeed(ctx context.Context, path string, seeder Seeder) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	projects, err := ReadSeed(f)
	if err != nil {
		return 0, err
	}
	return seeder.Seed(ctx, projects)
}
