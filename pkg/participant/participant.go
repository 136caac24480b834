// Package participant enumerates peer tiles of a call and resolves a
// best-effort identifier for each.
//
// Identifiers come from whatever the markup offers. When a tile carries no
// id or data attribute the identifier is positional, so reordering the tile
// list can hand one participant's speaking history to another. That is a
// known limitation of the markup, not something this package tries to hide.
package participant

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

// TileSelector matches one participant tile in the call view.
const TileSelector = ".p-peer_tile__container"

// Tile is one enumerated participant tile.
type Tile struct {
	ID        string
	Index     int
	Selection *goquery.Selection
}

// Observation is the classified state of a tile in one scan.
type Observation struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RawLabel   string `json:"raw_label,omitempty"`
	IsSpeaking bool   `json:"is_speaking"`
	Strategy   string `json:"strategy"`
}

// Enumerate lists every tile in document order. Index is the position in
// this enumeration.
func Enumerate(doc *dom.Document) []Tile {
	var tiles []Tile
	doc.Find(TileSelector).Each(func(i int, sel *goquery.Selection) {
		tiles = append(tiles, Tile{
			ID:        ResolveID(sel, i),
			Index:     i,
			Selection: sel,
		})
	})
	return tiles
}

// ResolveID picks the first available of: element id, data-member-id,
// data-user-id, then a synthetic positional id.
func ResolveID(sel *goquery.Selection, index int) string {
	for _, attr := range []string{"id", "data-member-id", "data-user-id"} {
		if v := dom.Attr(sel, attr); v != "" {
			return v
		}
	}
	return fmt.Sprintf("peer_container_%d", index)
}
