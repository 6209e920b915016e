package titles

import "github.com/dgallion1/docseg/internal/doctree"

// BuildHierarchy nests chapters given in document order. Each chapter becomes
// a child of the nearest preceding chapter with a smaller level, or a
// top-level chapter when there is none.
func BuildHierarchy(flat []*doctree.Chapter) []*doctree.Chapter {
	var roots []*doctree.Chapter
	stack := make([]*doctree.Chapter, 0, 8)

	for _, ch := range flat {
		if ch.Level < 1 {
			ch.Level = 1
		}
		for len(stack) > 0 && stack[len(stack)-1].Level >= ch.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, ch)
		} else {
			parent := stack[len(stack)-1]
			parent.SubChapters = append(parent.SubChapters, ch)
		}
		stack = append(stack, ch)
	}
	return roots
}
