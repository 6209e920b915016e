package segmenter

import (
	"github.com/tmc/langchaingo/schema"

	"github.com/dgallion1/docseg/internal/doctree"
)

// ToSchemaDocuments converts segments to langchaingo documents for embedding
// and vector store clients. The segment ID and title are added to the
// metadata.
func ToSchemaDocuments(segments []doctree.Segment) []schema.Document {
	docs := make([]schema.Document, 0, len(segments))
	for _, seg := range segments {
		meta := make(map[string]any, len(seg.Metadata)+2)
		for k, v := range seg.Metadata {
			meta[k] = v
		}
		meta["segment_id"] = seg.ID
		meta["segment_title"] = seg.Title
		docs = append(docs, schema.Document{
			PageContent: seg.Content,
			Metadata:    meta,
		})
	}
	return docs
}
