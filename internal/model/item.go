package model

import (
	"errors"

	"github.com/ehce/ehce/internal/registry"
	"gopkg.in/yaml.v3"
)

// ItemVersion is the only item format version understood.
const ItemVersion = "0"

// Item is one decoded item file: the envelope fields and the payload,
// which is decoded into the kind's raw shape on insertion. JSON is read
// through the YAML decoder.
type Item struct {
	Path    string
	Version string
	Type    string
	ID      string

	body yaml.Node
}

func malformed(path string, err error) error {
	return registry.Context(registry.Fail(&registry.Malformed{Err: err}), registry.ItemByPath(path, "?"))
}

// DecodeItem reads the envelope of an item file.
func DecodeItem(path string, data []byte) (Item, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Item{}, malformed(path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return Item{}, malformed(path, errors.New("empty item file"))
	}
	it := Item{Path: path, body: *doc.Content[0]}
	if it.body.Kind != yaml.MappingNode {
		return Item{}, malformed(path, errors.New("item must be a mapping"))
	}

	var head struct {
		Version string `yaml:"version"`
		Type    string `yaml:"type"`
		ID      string `yaml:"id"`
	}
	if err := it.body.Decode(&head); err != nil {
		return Item{}, malformed(path, err)
	}
	it.Version, it.Type, it.ID = head.Version, head.Type, head.ID
	if it.Version != ItemVersion {
		return Item{}, registry.Context(registry.Fail(&registry.UnsupportedVersion{Version: it.Version}), registry.ItemByPath(path, it.Type))
	}
	return it, nil
}

// Decode fills v with the item payload.
func (it Item) Decode(v any) error { return it.body.Decode(v) }
