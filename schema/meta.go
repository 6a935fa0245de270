package schema

import (
	"encoding/json"

	"github.com/erigontech/objectdb/object"
)

// metaKey is the single key under which the schema is stored in the meta
// table.
var metaKey = []byte("schema")

type metaProperty struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Type   uint8  `json:"type"`
}

type metaIndexProperty struct {
	Property      metaProperty `json:"property"`
	Type          uint8        `json:"type"`
	CaseSensitive bool         `json:"caseSensitive"`
}

type metaIndex struct {
	ID         uint16              `json:"id"`
	Name       string              `json:"name"`
	Properties []metaIndexProperty `json:"properties"`
	Unique     bool                `json:"unique"`
	Replace    bool                `json:"replace"`
}

type metaLink struct {
	ID               uint16 `json:"id"`
	Name             string `json:"name"`
	SourceCollection uint16 `json:"sourceCollection"`
	TargetCollection uint16 `json:"targetCollection"`
}

type metaCollection struct {
	ID         uint16         `json:"id"`
	Name       string         `json:"name"`
	Properties []metaProperty `json:"properties"`
	Indexes    []metaIndex    `json:"indexes"`
	Links      []metaLink     `json:"links"`
}

type metaSchema struct {
	Collections []metaCollection `json:"collections"`
}

// MarshalJSON encodes the schema as the UTF-8 JSON document persisted in
// the meta table.
func MarshalJSON(s Schema) ([]byte, error) {
	var m metaSchema
	for _, c := range s.Collections {
		mc := metaCollection{ID: c.ID, Name: c.Name}
		for _, p := range c.Properties {
			mc.Properties = append(mc.Properties, metaProperty{Name: p.Name, Offset: p.Offset, Type: uint8(p.Type)})
		}
		for _, ix := range c.Indexes {
			mi := metaIndex{ID: ix.ID, Name: ix.Name, Unique: ix.Unique, Replace: ix.Replace}
			for _, ip := range ix.Properties {
				mi.Properties = append(mi.Properties, metaIndexProperty{
					Property:      metaProperty{Name: ip.Property.Name, Offset: ip.Property.Offset, Type: uint8(ip.Property.Type)},
					Type:          uint8(ip.Type),
					CaseSensitive: ip.CaseSensitive,
				})
			}
			mc.Indexes = append(mc.Indexes, mi)
		}
		for _, l := range c.Links {
			mc.Links = append(mc.Links, metaLink{ID: l.ID, Name: l.Name, SourceCollection: l.SourceCollection, TargetCollection: l.TargetCollection})
		}
		m.Collections = append(m.Collections, mc)
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a schema previously written by MarshalJSON.
func UnmarshalJSON(data []byte) (Schema, error) {
	var m metaSchema
	if err := json.Unmarshal(data, &m); err != nil {
		return Schema{}, err
	}
	var s Schema
	for _, mc := range m.Collections {
		c := Collection{ID: mc.ID, Name: mc.Name}
		for _, p := range mc.Properties {
			c.Properties = append(c.Properties, object.Property{Name: p.Name, Offset: p.Offset, Type: object.DataType(p.Type)})
		}
		for _, mi := range mc.Indexes {
			ix := Index{ID: mi.ID, Name: mi.Name, Unique: mi.Unique, Replace: mi.Replace}
			for _, ip := range mi.Properties {
				ix.Properties = append(ix.Properties, IndexProperty{
					Property:      object.Property{Name: ip.Property.Name, Offset: ip.Property.Offset, Type: object.DataType(ip.Property.Type)},
					Type:          IndexType(ip.Type),
					CaseSensitive: ip.CaseSensitive,
				})
			}
			c.Indexes = append(c.Indexes, ix)
		}
		for _, ml := range mc.Links {
			c.Links = append(c.Links, Link{ID: ml.ID, Name: ml.Name, SourceCollection: ml.SourceCollection, TargetCollection: ml.TargetCollection})
		}
		s.Collections = append(s.Collections, c)
	}
	return s, nil
}

// MetaKey returns the meta table key the schema is stored under.
func MetaKey() []byte { return metaKey }
