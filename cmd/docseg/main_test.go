package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docseg/internal/doctree"
)

func guideMarkdown() string {
	body := strings.Repeat("setup steps are described in this paragraph. ", 4)
	return "# Install\n\n" + body + "\n\n## Linux\n\n" + body + "\n\n# Usage\n\n" + body + "\n"
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSegmentCommand_JSON(t *testing.T) {
	path := writeTemp(t, "guide.md", guideMarkdown())

	out, err := run(t, "segment", "-o", "json", "--title", "Guide", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res []fileSegments
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid json output: %v\n%s", err, out)
	}
	if len(res) != 1 || res[0].Kind != "markdown" {
		t.Fatalf("unexpected result %+v", res)
	}
	segs := res[0].Segments
	if len(segs) != 2 {
		t.Fatalf("expected 2 merged segments, got %d", len(segs))
	}
	if segs[0].Title != "Install" || !strings.Contains(segs[0].Content, "setup steps") {
		t.Errorf("unexpected first segment %+v", segs[0])
	}
	if segs[0].Metadata["title"] != "Guide" {
		t.Errorf("expected title metadata, got %v", segs[0].Metadata["title"])
	}
}

func TestSegmentCommand_FlagsOverrideConfig(t *testing.T) {
	path := writeTemp(t, "guide.md", guideMarkdown())

	out, err := run(t, "segment", "-o", "json", "--include-sub-chapters=false", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res []fileSegments
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if n := len(res[0].Segments); n != 3 {
		t.Errorf("expected one segment per chapter node (3), got %d", n)
	}
}

func TestSegmentCommand_Errors(t *testing.T) {
	path := writeTemp(t, "guide.md", guideMarkdown())
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"segment", filepath.Join(t.TempDir(), "nope.md")}, "read"},
		{"bad output", []string{"segment", "-o", "xml", path}, "unknown output format"},
		{"impossible sizes", []string{"segment", "--min", "10", "--max", "150", path}, "overlap"},
		{"no args", []string{"segment"}, "arg"},
	}
	for _, tt := range tests {
		_, err := run(t, tt.args...)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: expected error mentioning %q, got %v", tt.name, tt.want, err)
		}
	}
}

func TestOutlineCommand_YAML(t *testing.T) {
	path := writeTemp(t, "guide.md", guideMarkdown())

	out, err := run(t, "outline", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var roots []outlineNode
	if err := yaml.Unmarshal([]byte(out), &roots); err != nil {
		t.Fatalf("invalid yaml output: %v\n%s", err, out)
	}
	if len(roots) != 2 || roots[0].Title != "Install" || roots[1].Title != "Usage" {
		t.Fatalf("unexpected roots %+v", roots)
	}
	if len(roots[0].Children) != 1 || roots[0].Children[0].Title != "Linux" || roots[0].Children[0].Level != 2 {
		t.Errorf("expected Linux under Install, got %+v", roots[0].Children)
	}
	if roots[0].Source != "markdown_headings" {
		t.Errorf("expected markdown_headings source, got %q", roots[0].Source)
	}
}

func TestBuildOutline(t *testing.T) {
	a := doctree.NewChapter("A", 1)
	a.Content = "abc"
	b := doctree.NewChapter("B", 2)
	c := doctree.NewChapter("C", 3)
	c.Metadata[doctree.MetaFallbackFrom] = "pdf"
	b.SubChapters = []*doctree.Chapter{c}
	a.SubChapters = []*doctree.Chapter{b}
	d := doctree.NewChapter("D", 1)

	roots := buildOutline([]*doctree.Chapter{a, d})
	if len(roots) != 2 || roots[0].Title != "A" || roots[1].Title != "D" {
		t.Fatalf("unexpected roots %+v", roots)
	}
	if roots[0].Length != 3 || roots[0].Start != -1 {
		t.Errorf("unexpected root fields %+v", roots[0])
	}
	deep := roots[0].Children[0].Children[0]
	if deep.Title != "C" || deep.FallbackFrom != "pdf" {
		t.Errorf("unexpected deep node %+v", deep)
	}
	if len(buildOutline(nil)) != 0 {
		t.Error("expected empty outline for no chapters")
	}
}

func TestWriteOutput(t *testing.T) {
	data := map[string]int{"segments": 2}
	tests := []struct {
		format outputFormat
		want   string
	}{
		{outputJSON, "{\n  \"segments\": 2\n}\n"},
		{outputYAML, "segments: 2\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := writeOutput(&buf, tt.format, data); err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.format, err)
		}
		if buf.String() != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.format, tt.want, buf.String())
		}
	}
	if err := writeOutput(&bytes.Buffer{}, "xml", data); err == nil {
		t.Error("expected error for unknown format")
	}
}
