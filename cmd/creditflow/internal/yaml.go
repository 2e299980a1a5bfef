// Copyright © 2025 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package internal

import (
	"io"
	"strings"

	"github.com/conduitio/yaml/v3"
)

// YAMLTree builds a YAML mapping out of dotted paths, so values can be
// inserted together with a comment.
type YAMLTree struct {
	Root *yaml.Node
}

func NewYAMLTree() *YAMLTree {
	return &YAMLTree{
		Root: &yaml.Node{Kind: yaml.MappingNode},
	}
}

// Insert adds the value under path, creating intermediate mappings. The
// comment is attached to the last key.
func (t *YAMLTree) Insert(path, value, comment string) {
	parts := strings.Split(path, ".")
	current := t.Root

	for i, part := range parts {
		isLast := i == len(parts)-1
		if next := lookup(current, part); next != nil {
			current = next
			continue
		}

		key := &yaml.Node{Kind: yaml.ScalarNode, Value: part}
		if comment != "" && isLast {
			key.HeadComment = "# " + comment
		}
		next := &yaml.Node{Kind: yaml.MappingNode}
		if isLast {
			next = &yaml.Node{Kind: yaml.ScalarNode, Value: value}
		}
		current.Content = append(current.Content, key, next)
		current = next
	}
}

// Encode writes the tree to w with an indentation of two spaces.
func (t *YAMLTree) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t.Root); err != nil {
		return err
	}
	return enc.Close()
}

// lookup returns the value stored under key in a mapping node.
func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
