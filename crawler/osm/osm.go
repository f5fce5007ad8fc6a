// Package osm extracts region boundary polygons from OSM XML dumps.
//
// Administrative boundaries in OSM are relations referencing ways, which in
// turn reference nodes, and the three element kinds appear in that reverse
// order in a dump. Extraction therefore makes three passes over the file:
// relations first, then the ways they reference, then the nodes those ways
// reference.
package osm

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/apex/log"
	geojson "github.com/paulmach/go.geojson"
)

// Node is an OSM node: a single coordinate.
type Node struct {
	ID   int64
	Lon  float64
	Lat  float64
	Tags map[string]string
}

// Way is an ordered list of node references.
type Way struct {
	ID      int64
	NodeIDs []int64
	Tags    map[string]string
}

// Relation is a collection of way members.
type Relation struct {
	ID     int64
	WayIDs []int64
	Tags   map[string]string
}

// Filter selects which elements Parse collects.
type Filter struct {
	NodeIDs     map[int64]bool
	WayIDs      map[int64]bool
	RelationIDs map[int64]bool
}

// Data holds the elements matched by a Parse pass.
type Data struct {
	Nodes     map[int64]*Node
	Ways      map[int64]*Way
	Relations map[int64]*Relation
}

// Parse streams through an OSM XML document and collects the filtered
// elements.
func Parse(r io.Reader, filter Filter) (*Data, error) {
	data := &Data{
		Nodes:     make(map[int64]*Node),
		Ways:      make(map[int64]*Way),
		Relations: make(map[int64]*Relation),
	}

	var curNode *Node
	var curWay *Way
	var curRelation *Relation

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing OSM XML: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "node":
				curNode, curWay, curRelation = nil, nil, nil
				id := attrInt64(el, "id")
				if !filter.NodeIDs[id] {
					continue
				}
				curNode = &Node{
					ID:   id,
					Lon:  attrFloat(el, "lon"),
					Lat:  attrFloat(el, "lat"),
					Tags: make(map[string]string),
				}
				data.Nodes[id] = curNode
			case "way":
				curNode, curWay, curRelation = nil, nil, nil
				id := attrInt64(el, "id")
				if !filter.WayIDs[id] {
					continue
				}
				curWay = &Way{ID: id, Tags: make(map[string]string)}
				data.Ways[id] = curWay
			case "relation":
				curNode, curWay, curRelation = nil, nil, nil
				id := attrInt64(el, "id")
				if !filter.RelationIDs[id] {
					continue
				}
				curRelation = &Relation{ID: id, Tags: make(map[string]string)}
				data.Relations[id] = curRelation
			case "nd":
				if curWay != nil {
					curWay.NodeIDs = append(curWay.NodeIDs, attrInt64(el, "ref"))
				}
			case "member":
				if curRelation != nil && attr(el, "type") == "way" {
					curRelation.WayIDs = append(curRelation.WayIDs, attrInt64(el, "ref"))
				}
			case "tag":
				k, v := attr(el, "k"), attr(el, "v")
				switch {
				case curNode != nil:
					curNode.Tags[k] = v
				case curWay != nil:
					curWay.Tags[k] = v
				case curRelation != nil:
					curRelation.Tags[k] = v
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "node":
				curNode = nil
			case "way":
				curWay = nil
			case "relation":
				curRelation = nil
			}
		}
	}

	return data, nil
}

// RelationShape extracts the boundary polygon of the given relation from an
// OSM XML dump. The relation's ways must chain into a single closed ring.
func RelationShape(r io.ReadSeeker, relationID int64) (*geojson.Geometry, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	pass1, err := Parse(r, Filter{RelationIDs: map[int64]bool{relationID: true}})
	if err != nil {
		return nil, err
	}
	relation, ok := pass1.Relations[relationID]
	if !ok {
		return nil, fmt.Errorf("relation %d not found", relationID)
	}
	log.Debugf("Relation %d references %d ways", relationID, len(relation.WayIDs))

	wayIDs := make(map[int64]bool, len(relation.WayIDs))
	for _, wid := range relation.WayIDs {
		wayIDs[wid] = true
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	pass2, err := Parse(r, Filter{WayIDs: wayIDs})
	if err != nil {
		return nil, err
	}

	nodeIDs := make(map[int64]bool)
	for _, w := range pass2.Ways {
		for _, nid := range w.NodeIDs {
			nodeIDs[nid] = true
		}
	}
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	pass3, err := Parse(r, Filter{NodeIDs: nodeIDs})
	if err != nil {
		return nil, err
	}

	ring, err := assembleRing(relation, pass2.Ways, pass3.Nodes)
	if err != nil {
		return nil, fmt.Errorf("relation %d: %w", relationID, err)
	}
	return geojson.NewPolygonGeometry([][][]float64{ring}), nil
}

// assembleRing chains the relation's ways end to end into one closed ring
// of coordinates. Way direction is not significant in OSM, so segments are
// reversed as needed while stitching.
func assembleRing(relation *Relation, ways map[int64]*Way, nodes map[int64]*Node) ([][]float64, error) {
	remaining := make(map[int64][]int64, len(relation.WayIDs))
	for _, wid := range relation.WayIDs {
		w, ok := ways[wid]
		if !ok || len(w.NodeIDs) < 2 {
			return nil, fmt.Errorf("way %d missing or degenerate", wid)
		}
		remaining[wid] = w.NodeIDs
	}
	if len(remaining) == 0 {
		return nil, fmt.Errorf("no way members")
	}

	// Start from an arbitrary member and grow the chain.
	var chain []int64
	for wid, nids := range remaining {
		chain = append(chain, nids...)
		delete(remaining, wid)
		break
	}

	for len(remaining) > 0 {
		extended := false
		for wid, nids := range remaining {
			last := chain[len(chain)-1]
			switch {
			case nids[0] == last:
				chain = append(chain, nids[1:]...)
			case nids[len(nids)-1] == last:
				for i := len(nids) - 2; i >= 0; i-- {
					chain = append(chain, nids[i])
				}
			default:
				continue
			}
			delete(remaining, wid)
			extended = true
			break
		}
		if !extended {
			return nil, fmt.Errorf("ways do not form a single chain (%d left over)", len(remaining))
		}
	}

	if chain[0] != chain[len(chain)-1] {
		return nil, fmt.Errorf("ways do not close into a ring")
	}

	ring := make([][]float64, 0, len(chain))
	for _, nid := range chain {
		n, ok := nodes[nid]
		if !ok {
			return nil, fmt.Errorf("node %d missing", nid)
		}
		ring = append(ring, []float64{n.Lon, n.Lat})
	}
	return ring, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func attrInt64(el xml.StartElement, name string) int64 {
	v, _ := strconv.ParseInt(attr(el, name), 10, 64)
	return v
}

func attrFloat(el xml.StartElement, name string) float64 {
	v, _ := strconv.ParseFloat(attr(el, name), 64)
	return v
}
