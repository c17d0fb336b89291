// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// WriteScalar sets the string value at the dotted key path in configFile,
// creating missing mappings. Comments and key order of the file are kept.
func WriteScalar(configFile string, value string, path ...string) error {
	if len(path) == 0 {
		return errors.New("config: empty key path")
	}
	info, err := os.Stat(configFile)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		return err
	}

	var doc yaml.Node
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", configFile, err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return fmt.Errorf("config: %s is not a single YAML document", configFile)
	}

	leaf := doc.Content[0]
	for _, key := range path {
		leaf = childOf(leaf, key)
	}
	*leaf = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err = enc.Encode(&doc); err != nil {
		return err
	}
	if err = enc.Close(); err != nil {
		return err
	}
	if err = os.WriteFile(configFile, buf.Bytes(), info.Mode().Perm()); err != nil {
		return err
	}
	log.Debugf("config: wrote %v to %s", path, configFile)
	return nil
}

// childOf returns the value node stored under key in parent, turning parent
// into a mapping and appending the key when needed.
func childOf(parent *yaml.Node, key string) *yaml.Node {
	if parent.Kind != yaml.MappingNode {
		*parent = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	for i := 1; i < len(parent.Content); i += 2 {
		if parent.Content[i-1].Value == key {
			return parent.Content[i]
		}
	}
	child := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
	parent.Content = append(parent.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, child)
	return child
}
