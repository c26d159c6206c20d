package directory

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML document loaded into a Memory directory:
//
//	users:
//	  - id: alice
//	    first_name: Alice
//	    ims: {sip: "sip:alice@example.org"}
//	spaces:
//	  - id: engineering
//	    group_id: /spaces/engineering
//	    members: [alice]
type Seed struct {
	Users  []User  `yaml:"users"`
	Spaces []Space `yaml:"spaces"`
}

// LoadSeed decodes a seed document and adds it to m.
func (m *Memory) LoadSeed(r io.Reader) error {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return fmt.Errorf("decoding directory seed: %w", err)
	}
	for i, u := range s.Users {
		if u.ID == "" {
			return fmt.Errorf("directory seed: user %d has no id", i)
		}
		m.PutUser(u)
	}
	for i, sp := range s.Spaces {
		if sp.ID == "" {
			return fmt.Errorf("directory seed: space %d has no id", i)
		}
		m.PutSpace(sp)
	}
	return nil
}

// LoadSeedFile opens path and loads it. An empty path is a no-op.
func (m *Memory) LoadSeedFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening directory seed: %w", err)
	}
	defer func() { _ = f.Close() }()
	return m.LoadSeed(f)
}
