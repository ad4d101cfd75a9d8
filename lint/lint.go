// Package lint checks YAML configuration documents for malformed
// interpolation expressions. Every string scalar containing ${ is run
// through the parser; failures are collected as positioned diagnostics
// instead of aborting, so a whole tree of config files can be reported
// in one pass.
package lint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weftworks/weft"
)

// Diagnostic is a single finding in a config document.
type Diagnostic struct {
	// Path is the file the finding belongs to.
	Path string
	// Line and Column locate the offending scalar, 1-based.
	Line   int
	Column int
	// Key is the dotted config path of the scalar, when known.
	Key string
	// Message describes the failure.
	Message string
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", d.Path, d.Line, d.Column, d.Message)
	}

	return fmt.Sprintf("%s: %s", d.Path, d.Message)
}

// File lints a single YAML file.
func File(path string) ([]Diagnostic, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	return Source(path, data)
}

// Source lints YAML data. A document that fails to decode yields one
// diagnostic rather than an error, so callers can keep walking.
func Source(path string, data []byte) ([]Diagnostic, error) {
	var doc yaml.Node

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []Diagnostic{{Path: path, Message: err.Error()}}, nil
	}

	var diags []Diagnostic

	walk(&doc, path, nil, &diags)

	return diags, nil
}

func walk(n *yaml.Node, path string, keys []string, diags *[]Diagnostic) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, child := range n.Content {
			walk(child, path, keys, diags)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			walk(val, path, append(keys, key.Value), diags)
		}
	case yaml.SequenceNode:
		for i, child := range n.Content {
			walk(child, path, append(keys, fmt.Sprintf("%d", i)), diags)
		}
	case yaml.ScalarNode:
		if n.Tag != "!!str" || !weft.ContainsInterpolation(n.Value) {
			return
		}

		if _, err := weft.Parse(n.Value); err != nil {
			*diags = append(*diags, Diagnostic{
				Path:    path,
				Line:    n.Line,
				Column:  n.Column,
				Key:     strings.Join(keys, "."),
				Message: err.Error(),
			})
		}
	}
}
