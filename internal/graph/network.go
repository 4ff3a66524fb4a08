package graph

import (
	"fmt"
	"strings"

	"github.com/roach88/iadas/internal/ir"
	"github.com/roach88/iadas/internal/ontology"
	"github.com/roach88/iadas/internal/results"
)

// NetworkNodeType is the role of a node in the factor network.
type NetworkNodeType string

const (
	NodeFactor    NetworkNodeType = "factor"
	NodeACAD      NetworkNodeType = "acad"
	NodeMediator  NetworkNodeType = "mediator"
	NodeModerator NetworkNodeType = "moderator"
)

// Relation buckets in the order links of one pair are emitted.
const (
	RelationRisk       = "+"
	RelationProtective = "-"
	RelationNS         = "NS"
	RelationMediator   = "mediator"
	RelationModerator  = "moderator"
	RelationUnknown    = "unknown"
)

var relationOrder = []string{RelationRisk, RelationProtective, RelationNS, RelationMediator, RelationModerator, RelationUnknown}

const (
	factorSize    = 20
	mediatorSize  = 15
	unknownID     = "unknown"
	mediatorColor = "#f39c12"
	moderatorLink = "#e67e22"
)

var (
	acadPalette = map[string]string{
		"DEAB":     "#C62828",
		"Multiple": "#EF5350",
	}
	relationPalette = map[string]string{
		RelationRisk:       "#E53E3E",
		RelationProtective: "#38A169",
		RelationNS:         "#718096",
	}
)

// NodeColor returns the display color of a network node. Factor colors
// come from the ontology's category table.
func NodeColor(t NetworkNodeType, category string) string {
	switch t {
	case NodeACAD:
		if c, ok := acadPalette[category]; ok {
			return c
		}
		return "#F44336"
	case NodeFactor:
		if c, ok := ontology.Default().CategoryColor(category); ok {
			return c
		}
		return "#64B5F6"
	case NodeMediator:
		return "#FFD700"
	case NodeModerator:
		return "#FF8C00"
	default:
		return "#808080"
	}
}

// RelationColor returns the display color of a relation result.
func RelationColor(relation string) string {
	if c, ok := relationPalette[relation]; ok {
		return c
	}
	return "#A0AEC0"
}

// NetworkNode is one factor, behaviour, mediator or moderator.
type NetworkNode struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Type     NetworkNodeType `json:"type"`
	Category string          `json:"category,omitempty"`
	Size     int             `json:"size"`
	Color    string          `json:"color"`
	Analyses []string        `json:"analyses"`
}

// NetworkLink aggregates every analysis relating the same two nodes with
// the same result.
type NetworkLink struct {
	ID            string   `json:"id"`
	Source        string   `json:"source"`
	Target        string   `json:"target"`
	Relation      string   `json:"relation"`
	Label         string   `json:"label"`
	Type          string   `json:"type"`
	Color         string   `json:"color"`
	Analyses      []string `json:"allAnalyses"`
	Count         int      `json:"count"`
	DetailedLabel string   `json:"detailedLabel"`
}

// FactorNetwork is the network view of a set of analysis rows.
type FactorNetwork struct {
	Nodes []NetworkNode `json:"nodes"`
	Links []NetworkLink `json:"links"`
}

type relationEdge struct {
	source, target string
	relation       string
	label          string
	kind           string
	color          string
	analysisID     string
}

type networkBuilder struct {
	nodes []NetworkNode
	index map[string]int
	edges []relationEdge
}

// Network builds the factor network of rows projected by the analysis
// SELECT. Rows are read through the variables analysis, vi, vd,
// categoryVI, categoryVD, mediator, moderator and resultatRelation.
//
// A factor linked to a behaviour through a mediator (or, failing that, a
// moderator) yields two links through that node; otherwise one direct
// link. Links between the same two nodes are merged per relation result,
// unrecognised results counting as NS.
func Network(rows []results.Row) FactorNetwork {
	b := &networkBuilder{index: make(map[string]int)}
	for _, row := range rows {
		b.add(row)
	}
	return FactorNetwork{Nodes: nonNil(b.nodes), Links: mergeLinks(b.edges)}
}

func (b *networkBuilder) add(row results.Row) {
	analysisID := unknownID
	if ref, ok := row["analysis"].(ir.URIRef); ok {
		if id, ok := results.ExtractAnalysisID(ref.URI); ok {
			analysisID = id
		}
	}

	vi := cell(row, "vi")
	vd := cell(row, "vd")
	mediator := optionalCell(row, "mediator")
	moderator := optionalCell(row, "moderator")
	relation := cell(row, "resultatRelation")

	if vi != "" {
		b.node("factor_"+vi, vi, NodeFactor, cell(row, "categoryVI"), factorSize, analysisID)
	}
	if vd != "" {
		b.node("acad_"+vd, vd, NodeACAD, cell(row, "categoryVD"), factorSize, analysisID)
	}
	if mediator != "" {
		b.node("mediator_"+mediator, mediator, NodeMediator, "", mediatorSize, analysisID)
	}
	if moderator != "" {
		b.node("moderator_"+moderator, moderator, NodeModerator, "", mediatorSize, analysisID)
	}
	if vi == "" || vd == "" {
		return
	}

	result, label := relation, relation
	if result == "" {
		result, label = RelationUnknown, "relation"
	}
	factor, acad := "factor_"+vi, "acad_"+vd
	switch {
	case mediator != "":
		via := "mediator_" + mediator
		b.edges = append(b.edges,
			relationEdge{factor, via, RelationMediator, "via mediator", "factor-mediator", mediatorColor, analysisID},
			relationEdge{via, acad, result, label, "mediator-acad", RelationColor(relation), analysisID},
		)
	case moderator != "":
		via := "moderator_" + moderator
		b.edges = append(b.edges,
			relationEdge{factor, via, RelationModerator, "via moderator", "factor-moderator", moderatorLink, analysisID},
			relationEdge{via, acad, result, label, "moderator-acad", RelationColor(relation), analysisID},
		)
	default:
		b.edges = append(b.edges,
			relationEdge{factor, acad, result, label, "factor-acad", RelationColor(relation), analysisID},
		)
	}
}

func (b *networkBuilder) node(id, label string, t NetworkNodeType, category string, size int, analysisID string) {
	pos, ok := b.index[id]
	if !ok {
		pos = len(b.nodes)
		b.index[id] = pos
		b.nodes = append(b.nodes, NetworkNode{
			ID:       id,
			Label:    label,
			Type:     t,
			Category: category,
			Size:     size,
			Color:    NodeColor(t, category),
			Analyses: []string{},
		})
	}
	n := &b.nodes[pos]
	for _, a := range n.Analyses {
		if a == analysisID {
			return
		}
	}
	n.Analyses = append(n.Analyses, analysisID)
}

// mergeLinks groups edges by (source, target) in first-seen order, then by
// relation bucket. The first edge of a bucket stands for the whole bucket.
func mergeLinks(edges []relationEdge) []NetworkLink {
	type pair struct{ source, target string }
	var pairs []pair
	buckets := make(map[pair]map[string][]relationEdge)

	for _, e := range edges {
		p := pair{e.source, e.target}
		group, ok := buckets[p]
		if !ok {
			group = make(map[string][]relationEdge)
			buckets[p] = group
			pairs = append(pairs, p)
		}
		bucket := e.relation
		if !knownRelation(bucket) {
			bucket = RelationNS
		}
		group[bucket] = append(group[bucket], e)
	}

	links := []NetworkLink{}
	for _, p := range pairs {
		group := buckets[p]
		for _, bucket := range relationOrder {
			members := group[bucket]
			if len(members) == 0 {
				continue
			}
			rep := members[0]
			ids := make([]string, len(members))
			for i, m := range members {
				ids[i] = m.analysisID
			}
			detailed := rep.label
			if len(members) > 1 {
				detailed = fmt.Sprintf("%s (%d analyses)", rep.label, len(members))
			}
			links = append(links, NetworkLink{
				ID:            p.source + "_" + p.target + "_" + bucket,
				Source:        rep.source,
				Target:        rep.target,
				Relation:      rep.relation,
				Label:         rep.label,
				Type:          rep.kind,
				Color:         rep.color,
				Analyses:      ids,
				Count:         len(members),
				DetailedLabel: detailed,
			})
		}
	}
	return links
}

func knownRelation(r string) bool {
	for _, known := range relationOrder {
		if r == known {
			return true
		}
	}
	return false
}

func cell(row results.Row, name string) string {
	return strings.TrimSpace(ir.Display(row[name]))
}

// optionalCell reads a mediator or moderator, treating N.A. as absent.
func optionalCell(row results.Row, name string) string {
	v := cell(row, name)
	if v == ir.NotApplicable {
		return ""
	}
	return v
}

func nonNil(nodes []NetworkNode) []NetworkNode {
	if nodes == nil {
		return []NetworkNode{}
	}
	return nodes
}
