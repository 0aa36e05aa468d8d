package build

import "sort"

// Node is a registered file with its imports and the files importing it.
type Node struct {
	File       string
	Imports    []string
	Dependents []string
}

// Graph is a file dependency graph with an incrementally maintained reverse
// index. Re-registering a file only touches the edges of that file.
type Graph struct {
	imports    map[string][]string
	dependents map[string]map[string]struct{}
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		imports:    make(map[string][]string),
		dependents: make(map[string]map[string]struct{}),
	}
}

// Register inserts or overwrites file with the given imports. Duplicate
// imports are dropped. Imports may name files that are not registered yet;
// their dependents are tracked so registering them later sees the edge.
func (g *Graph) Register(file string, imports []string) {
	for _, imp := range g.imports[file] {
		if set := g.dependents[imp]; set != nil {
			delete(set, file)
			if len(set) == 0 {
				delete(g.dependents, imp)
			}
		}
	}

	deduped := dedupe(imports)
	g.imports[file] = deduped
	for _, imp := range deduped {
		set := g.dependents[imp]
		if set == nil {
			set = make(map[string]struct{})
			g.dependents[imp] = set
		}
		set[file] = struct{}{}
	}
}

// Node returns the node for file, if registered.
func (g *Graph) Node(file string) (Node, bool) {
	imports, ok := g.imports[file]
	if !ok {
		return Node{}, false
	}
	return Node{
		File:       file,
		Imports:    append([]string(nil), imports...),
		Dependents: g.Dependents(file),
	}, true
}

// Dependents returns the direct importers of file, sorted.
func (g *Graph) Dependents(file string) []string {
	return sortedKeys(g.dependents[file])
}

// Closure returns file followed by every file transitively reachable over
// dependents edges, in breadth-first order. Cycles are tolerated.
func (g *Graph) Closure(file string) []string {
	seen := map[string]struct{}{file: {}}
	queue := []string{file}
	for i := 0; i < len(queue); i++ {
		for _, dep := range g.Dependents(queue[i]) {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}
	return queue
}

// Files returns every registered file, sorted.
func (g *Graph) Files() []string {
	files := make([]string, 0, len(g.imports))
	for f := range g.imports {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Len returns the number of registered files.
func (g *Graph) Len() int { return len(g.imports) }

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
