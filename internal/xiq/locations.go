package xiq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
)

const locationsTreePath = "/locations/tree"

// FetchLocationsTree returns the location tree exactly as the API sent it.
func (c *Client) FetchLocationsTree(ctx context.Context) (json.RawMessage, error) {
	log.Printf("fetching location tree")
	var raw json.RawMessage
	if err := c.getJSON(ctx, locationsTreePath, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ParseLocations decodes a tree that is either a list of nodes or a single node.
func ParseLocations(raw []byte) ([]Location, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var nodes []Location
		if err := json.Unmarshal(trimmed, &nodes); err != nil {
			return nil, fmt.Errorf("decode location tree: %w", err)
		}
		return nodes, nil
	}
	var node Location
	if err := json.Unmarshal(trimmed, &node); err != nil {
		return nil, fmt.Errorf("decode location tree: %w", err)
	}
	return []Location{node}, nil
}

// FindLocation does a depth-first search for a node whose unique name or
// name equals name. Unique names win over plain names.
func FindLocation(nodes []Location, name string) (Location, bool) {
	if loc, ok := findBy(nodes, func(l Location) bool { return l.UniqueName == name }); ok {
		return loc, true
	}
	return findBy(nodes, func(l Location) bool { return l.Name == name })
}

func findBy(nodes []Location, match func(Location) bool) (Location, bool) {
	for _, node := range nodes {
		if match(node) {
			return node, true
		}
		if loc, ok := findBy(node.Children, match); ok {
			return loc, true
		}
	}
	return Location{}, false
}
