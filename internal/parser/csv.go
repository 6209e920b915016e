package parser

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/dgallion1/docseg/internal/doctree"
	"github.com/dgallion1/docseg/internal/titles"
)

// csvBatchSize is the number of data rows per chapter.
const csvBatchSize = 20

// CSVParser handles CSV files. The header row labels every cell and data
// rows are grouped into level-1 chapters of csvBatchSize rows.
type CSVParser struct {
	Analyzer *titles.Analyzer
}

func (p *CSVParser) Parse(doc doctree.Document) ([]*doctree.Chapter, error) {
	reader := csv.NewReader(strings.NewReader(doc.Content))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ParseError{Kind: doctree.KindCSV, Err: err}
	}

	if chapters := chaptersFromRecords(records); len(chapters) > 0 {
		return chapters, nil
	}
	return fallback(analyzerOrDefault(p.Analyzer), doc.Content, doctree.KindCSV), nil
}

func chaptersFromRecords(records [][]string) []*doctree.Chapter {
	if len(records) < 2 {
		return nil
	}
	headers := records[0]
	dataRows := records[1:]

	var chapters []*doctree.Chapter
	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		var text strings.Builder
		text.WriteString("Headers: " + strings.Join(headers, ", ") + "\n\n")
		for _, row := range dataRows[i:end] {
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			text.WriteString("\n")
		}

		// Rows are numbered as in the file: 1-indexed, header first.
		ch := doctree.NewChapter(fmt.Sprintf("Rows %d-%d", i+2, end+1), 1)
		ch.Content = strings.TrimSpace(text.String())
		ch.Metadata[doctree.MetaStructureSource] = SourceCSV
		ch.Metadata["row_start"] = i + 2
		ch.Metadata["row_end"] = end + 1
		chapters = append(chapters, ch)
	}
	return chapters
}
