package schedule

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest lists the nodes of a test run and how to run them.
type Manifest struct {
	// Command is run once per node; "{node}" is replaced by the node id.
	// Without the placeholder the node id is appended.
	Command []string `yaml:"command,omitempty"`

	// Browser is used for groups whose key is not a browser identity.
	Browser string `yaml:"browser,omitempty"`

	Headless bool `yaml:"headless,omitempty"`
	Record   bool `yaml:"record,omitempty"`

	// Open shows the display of each sandbox in a view-only viewer.
	// Ignored when Headless is set.
	Open bool `yaml:"open,omitempty"`

	Nodes []Node `yaml:"nodes"`
}

// NodePlaceholder marks where the node id goes in Command.
const NodePlaceholder = "{node}"

// CommandFor returns the command line for one node.
func (m *Manifest) CommandFor(nodeID string) []string {
	out := make([]string, 0, len(m.Command)+1)
	replaced := false
	for _, arg := range m.Command {
		if strings.Contains(arg, NodePlaceholder) {
			arg = strings.ReplaceAll(arg, NodePlaceholder, nodeID)
			replaced = true
		}
		out = append(out, arg)
	}
	if !replaced {
		out = append(out, nodeID)
	}
	return out
}

// ParseManifest decodes a YAML manifest. Unknown fields are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if _, err := GroupNodes(m.Nodes); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// ParseNodeList reads one node id per line. Blank lines and lines
// starting with # are skipped.
func ParseNodeList(r io.Reader) ([]Node, error) {
	var nodes []Node
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		nodes = append(nodes, Node{ID: line})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// LoadManifest reads a manifest file. Files without a .yaml or .yml
// extension are read as plain node lists.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return ParseManifest(data)
	}
	nodes, err := ParseNodeList(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if _, err := GroupNodes(nodes); err != nil {
		return nil, fmt.Errorf("invalid node list: %w", err)
	}
	return &Manifest{Nodes: nodes}, nil
}

// WriteYAML encodes the plan.
func (p *Plan) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// SavePlan writes the plan to path.
func SavePlan(path string, p *Plan) error {
	var buf bytes.Buffer
	if err := p.WriteYAML(&buf); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

// LoadPlan reads a plan written by SavePlan.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if p.Workers < 1 || len(p.Assignments) != p.Workers {
		return nil, fmt.Errorf("invalid plan: %d assignments for %d workers", len(p.Assignments), p.Workers)
	}
	return &p, nil
}
