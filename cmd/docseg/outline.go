package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/segmenter"
)

// outlineNode is the printable form of a recovered chapter.
type outlineNode struct {
	Title        string         `json:"title" yaml:"title"`
	Level        int            `json:"level" yaml:"level"`
	Page         int            `json:"page,omitempty" yaml:"page,omitempty"`
	Start        int            `json:"start" yaml:"start"`
	End          int            `json:"end" yaml:"end"`
	Length       int            `json:"length" yaml:"length"`
	Source       string         `json:"source,omitempty" yaml:"source,omitempty"`
	FallbackFrom string         `json:"fallback_from,omitempty" yaml:"fallback_from,omitempty"`
	Children     []*outlineNode `json:"children,omitempty" yaml:"children,omitempty"`
}

func newOutlineCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "outline <file>",
		Short: "Print the chapter structure recovered from a document",
		Long: `Outline runs only structure extraction and prints the chapter tree with
levels, pages and character offsets. Use it to check what segment will see.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seg, err := segmenter.New(segmenter.DefaultOptions(), segmenter.WithLogger(c.log))
			if err != nil {
				return err
			}
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			chapters, err := seg.Chapters(doc)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return c.write(cmd, buildOutline(chapters))
		},
	}
}

// buildOutline mirrors the chapter forest without recursion, using the
// pre-order arena's parent indices.
func buildOutline(chapters []*doctree.Chapter) []*outlineNode {
	arena := doctree.Flatten(chapters)
	nodes := make([]*outlineNode, len(arena.Nodes))
	roots := make([]*outlineNode, 0, len(arena.Roots))
	for i, n := range arena.Nodes {
		ch := n.Chapter
		on := &outlineNode{
			Title:  ch.Title,
			Level:  ch.Level,
			Page:   ch.PageNumber,
			Start:  ch.StartPosition,
			End:    ch.EndPosition,
			Length: len([]rune(ch.Content)),
			Source: ch.Source(),
		}
		if from, ok := ch.Metadata[doctree.MetaFallbackFrom].(string); ok {
			on.FallbackFrom = from
		}
		nodes[i] = on
		if n.Parent < 0 {
			roots = append(roots, on)
		} else {
			parent := nodes[n.Parent]
			parent.Children = append(parent.Children, on)
		}
	}
	return roots
}
