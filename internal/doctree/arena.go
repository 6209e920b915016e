package doctree

import "strings"

// Node is one arena slot. Indices refer to Arena.Nodes.
type Node struct {
	Chapter  *Chapter
	Parent   int // -1 for top-level chapters.
	Depth    int
	Children []int
}

// Arena is a pre-order, index-addressed view of a chapter forest. The
// chapters themselves stay owned by their roots; the arena only indexes them.
type Arena struct {
	Nodes []Node
	Roots []int
}

// Flatten indexes a chapter forest in pre-order using an explicit stack, so
// deep hierarchies never grow the goroutine stack.
func Flatten(roots []*Chapter) *Arena {
	type frame struct {
		ch     *Chapter
		parent int
		depth  int
	}

	a := &Arena{}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{ch: roots[i], parent: -1})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.ch == nil {
			continue
		}

		idx := len(a.Nodes)
		a.Nodes = append(a.Nodes, Node{Chapter: f.ch, Parent: f.parent, Depth: f.depth})
		if f.parent < 0 {
			a.Roots = append(a.Roots, idx)
		} else {
			a.Nodes[f.parent].Children = append(a.Nodes[f.parent].Children, idx)
		}

		subs := f.ch.SubChapters
		for i := len(subs) - 1; i >= 0; i-- {
			stack = append(stack, frame{ch: subs[i], parent: idx, depth: f.depth + 1})
		}
	}
	return a
}

// SubtreeEnd returns the index one past the last descendant of node i.
// Pre-order keeps every subtree contiguous.
func (a *Arena) SubtreeEnd(i int) int {
	depth := a.Nodes[i].Depth
	j := i + 1
	for j < len(a.Nodes) && a.Nodes[j].Depth > depth {
		j++
	}
	return j
}

// Walk visits every chapter in pre-order.
func Walk(roots []*Chapter, fn func(ch *Chapter, depth int)) {
	for _, n := range Flatten(roots).Nodes {
		fn(n.Chapter, n.Depth)
	}
}

// Count returns the number of chapters in the forest.
func Count(roots []*Chapter) int {
	return len(Flatten(roots).Nodes)
}

// FullContent joins a chapter's own content with the content of all its
// descendants in pre-order, separated by blank lines.
func FullContent(ch *Chapter) string {
	var parts []string
	for _, n := range Flatten([]*Chapter{ch}).Nodes {
		if t := strings.TrimSpace(n.Chapter.Content); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
