package credentials

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"canvas-sync/internal/canvas"
)

// FileResolver serves credentials from a YAML file:
//
//	owners:
//	  alice:
//	    base_url: https://canvas.example.edu
//	    api_key: "..."
type FileResolver struct {
	owners map[string]canvas.Credentials
}

type credentialsFile struct {
	Owners map[string]struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"owners"`
}

// LoadFile reads the file once; edits need a restart.
func LoadFile(path string) (*FileResolver, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("credentials: read %s: %w", path, err)
	}
	return ParseFile(b)
}

func ParseFile(b []byte) (*FileResolver, error) {
	var f credentialsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("credentials: parse yaml: %w", err)
	}
	out := &FileResolver{owners: make(map[string]canvas.Credentials, len(f.Owners))}
	for owner, c := range f.Owners {
		out.owners[owner] = canvas.Credentials{BaseURL: c.BaseURL, APIKey: c.APIKey}
	}
	return out, nil
}

func (f *FileResolver) Resolve(_ context.Context, owner string) (canvas.Credentials, error) {
	c, ok := f.owners[owner]
	if !ok {
		return canvas.Credentials{}, needsSetup(owner, "not in credentials file")
	}
	return checked(owner, c)
}
