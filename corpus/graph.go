package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Edge is an undirected edge between two items, From < To
type Edge struct {
	From uint32
	To   uint32
}

// Graph is a static similarity graph over item ids
type Graph struct {
	NumItems uint32
	Edges    []Edge
}

// NewGraph builds a graph over numItems items. Self loops and
// repeated edges are dropped so that every edge is counted once.
func NewGraph(numItems uint32, edges []Edge) (*Graph, error) {
	g := &Graph{NumItems: numItems}
	seen := make(map[Edge]struct{}, len(edges))
	for _, e := range edges {
		if e.From >= numItems || e.To >= numItems {
			return nil, fmt.Errorf("edge %d-%d outside vocabulary of %d items", e.From, e.To, numItems)
		}
		if e.From == e.To {
			continue
		}
		if e.From > e.To {
			e.From, e.To = e.To, e.From
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		g.Edges = append(g.Edges, e)
	}
	return g, nil
}

// LoadGraph reads "i j" edge lines, blank lines and # comments are ignored
func LoadGraph(fn string, numItems uint32) (*Graph, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := ReadGraph(f, numItems)
	if err != nil {
		return nil, fmt.Errorf("load similarity graph %s: %w", fn, err)
	}
	return g, nil
}

func ReadGraph(r io.Reader, numItems uint32) (*Graph, error) {
	var edges []Edge
	scanner := bufio.NewScanner(r)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx += 1
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		vals := strings.Fields(line)
		if len(vals) != 2 {
			return nil, fmt.Errorf("line %d: bad edge %q", lineIdx, line)
		}
		from, err := strconv.ParseUint(vals[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineIdx, err)
		}
		to, err := strconv.ParseUint(vals[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineIdx, err)
		}
		edges = append(edges, Edge{From: uint32(from), To: uint32(to)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewGraph(numItems, edges)
}
