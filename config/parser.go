package config

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/saiset-co/sai-proxy/types"
)

// Parser resolves dotted paths ("caches.capacity") against the YAML form
// of a loaded config.
type Parser struct {
	root *yaml.Node
}

func NewParser(config *types.ServiceConfig) *Parser {
	var root yaml.Node
	if err := root.Encode(config); err != nil {
		return &Parser{}
	}
	return &Parser{root: &root}
}

// GetValue returns the plain Go value at path, or defaultValue when the
// path does not resolve.
func (p *Parser) GetValue(path string, defaultValue interface{}) interface{} {
	node := p.lookup(path)
	if node == nil {
		return defaultValue
	}

	var value interface{}
	if err := node.Decode(&value); err != nil || value == nil {
		return defaultValue
	}
	return value
}

// GetAs decodes the subtree at path into target.
func (p *Parser) GetAs(path string, target interface{}) error {
	node := p.lookup(path)
	if node == nil {
		return types.Errorf(types.ErrConfigNotFound, "path: %s", path)
	}

	if err := node.Decode(target); err != nil {
		return types.WrapError(err, "failed to decode config value")
	}
	return nil
}

func (p *Parser) lookup(path string) *yaml.Node {
	node := p.root
	if node == nil {
		return nil
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if path == "" {
		return node
	}

	for _, part := range strings.Split(path, ".") {
		node = child(node, part)
		if node == nil {
			return nil
		}
	}
	return node
}

// child returns the value node stored under key in a mapping node.
func child(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
