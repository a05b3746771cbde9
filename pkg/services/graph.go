package services

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/models"
)

// DatasetGraph represents datasets connected by positive value overlap.
type DatasetGraph struct {
	// Adjacency list: dataset -> datasets sharing at least one value
	edges map[string][]string
	// All datasets in insertion order
	datasets []string
	known    map[string]bool
}

// NewDatasetGraph creates a new empty dataset graph.
func NewDatasetGraph() *DatasetGraph {
	return &DatasetGraph{
		edges: make(map[string][]string),
		known: make(map[string]bool),
	}
}

// BuildDatasetGraph adds every dataset and one edge per scored match.
func BuildDatasetGraph(datasets []*models.Dataset, matches []models.ColumnPairMatch) *DatasetGraph {
	g := NewDatasetGraph()
	for _, ds := range datasets {
		g.AddDataset(ds.Name)
	}
	for _, m := range matches {
		if m.Score > 0 {
			g.AddOverlap(m.DatasetA, m.DatasetB)
		}
	}
	return g
}

// AddDataset adds a dataset without any edges.
func (g *DatasetGraph) AddDataset(name string) {
	if !g.known[name] {
		g.known[name] = true
		g.datasets = append(g.datasets, name)
	}
}

// AddOverlap adds an undirected edge between two datasets.
func (g *DatasetGraph) AddOverlap(a, b string) {
	g.AddDataset(a)
	g.AddDataset(b)
	for _, n := range g.edges[a] {
		if n == b {
			return
		}
	}
	g.edges[a] = append(g.edges[a], b)
	g.edges[b] = append(g.edges[b], a)
}

// ConnectedComponent represents a group of datasets reachable through overlaps.
type ConnectedComponent struct {
	Datasets []string
	Size     int
}

// FindConnectedComponents identifies all connected components in the graph using DFS.
// Returns components with more than one dataset sorted by size (largest first,
// ties in insertion order) and the list of island datasets.
func (g *DatasetGraph) FindConnectedComponents() ([]ConnectedComponent, []string) {
	visited := make(map[string]bool)
	var components []ConnectedComponent
	var islands []string

	for _, ds := range g.datasets {
		if visited[ds] {
			continue
		}
		component := g.dfs(ds, visited)
		if len(component) == 1 {
			islands = append(islands, component[0])
			continue
		}
		components = append(components, ConnectedComponent{
			Datasets: component,
			Size:     len(component),
		})
	}

	sort.SliceStable(components, func(i, j int) bool {
		return components[i].Size > components[j].Size
	})

	return components, islands
}

// ComponentOf returns every dataset reachable from start, including start.
func (g *DatasetGraph) ComponentOf(start string) []string {
	return g.dfs(start, make(map[string]bool))
}

// dfs performs depth-first search starting from a dataset.
func (g *DatasetGraph) dfs(start string, visited map[string]bool) []string {
	var component []string
	stack := []string{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}

		visited[current] = true
		component = append(component, current)

		for _, neighbor := range g.edges[current] {
			if !visited[neighbor] {
				stack = append(stack, neighbor)
			}
		}
	}

	return component
}

// UnjoinedReasons explains, for each dataset outside the first dataset's component,
// why auto mode cannot reach it.
func (g *DatasetGraph) UnjoinedReasons(datasets []*models.Dataset) map[int]string {
	reasons := make(map[int]string)
	if len(datasets) == 0 {
		return reasons
	}

	reachable := make(map[string]bool)
	for _, name := range g.ComponentOf(datasets[0].Name) {
		reachable[name] = true
	}

	for i, ds := range datasets {
		if reachable[ds.Name] {
			continue
		}
		if len(g.edges[ds.Name]) == 0 {
			reasons[i] = "no key found, no column shares values with another dataset"
			continue
		}
		reasons[i] = fmt.Sprintf("no key found, it only shares values with datasets that were not joined (%s)",
			strings.Join(g.edges[ds.Name], ", "))
	}
	return reasons
}

// LogConnectivity logs the connectivity analysis results in a human-readable format.
func LogConnectivity(
	matchCount int,
	components []ConnectedComponent,
	islands []string,
	logger *zap.Logger,
) {
	logger.Debug("Dataset connectivity analysis",
		zap.Int("overlapping_column_pairs", matchCount),
		zap.Int("components", len(components)),
		zap.Int("islands", len(islands)))

	for i, comp := range components {
		preview := comp.Datasets
		suffix := ""
		if len(preview) > 5 {
			preview = preview[:5]
			suffix = fmt.Sprintf(", ... (%d more)", len(comp.Datasets)-5)
		}
		logger.Debug(fmt.Sprintf("  Component %d (%d datasets): %v%s", i+1, comp.Size, preview, suffix))
	}

	if len(islands) > 0 {
		preview := islands
		suffix := ""
		if len(islands) > 5 {
			preview = islands[:5]
			suffix = fmt.Sprintf(", ... (%d more)", len(islands)-5)
		}
		logger.Debug(fmt.Sprintf("  Island datasets (%d): %v%s", len(islands), preview, suffix))
	}
}
