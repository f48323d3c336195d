package parser

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// Section is one unit of parsed text. Page is 1-based for paged formats
// (pdf pages, xlsx/ods sheets, pptx slides) and 0 when the format has none.
type Section struct {
	Content string
	Page    int
}

// Options carries the per-format knobs resolved from configuration.
type Options struct {
	CSVTextColumn  string
	JSONFieldPath  string
	JSONLFieldPath string
}

// UnsupportedFormatError names the extension ingestion cannot handle.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.Ext)
}

type parseFunc func(filePath string, opts Options) ([]Section, error)

// parsers is the static extension dispatch table; unknown extensions are
// rejected explicitly rather than falling through to a default.
var parsers = map[string]parseFunc{
	".txt":   parseText,
	".md":    parseMarkdown,
	".pdf":   parsePDF,
	".docx":  parseDOCX,
	".csv":   parseCSV,
	".json":  parseJSON,
	".jsonl": parseJSONL,
	".xlsx":  parseXLSX,
	".ods":   parseODS,
	".pptx":  parsePPTX,
}

// Supported reports whether the file's extension has a parser.
func Supported(filePath string) bool {
	_, ok := parsers[strings.ToLower(filepath.Ext(filePath))]
	return ok
}

// Parse dispatches on the file extension and returns the document's
// sections in source order.
func Parse(filePath string, opts Options) ([]Section, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	fn, ok := parsers[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Ext: ext}
	}
	return fn(filePath, opts)
}

func parseText(filePath string, _ Options) ([]Section, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []Section{{Content: string(data)}}, nil
}

// parseMarkdown walks the goldmark AST collecting text and code content so
// that formatting syntax does not leak into the embedded chunks.
func parseMarkdown(filePath string, _ Options) ([]Section, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(gmtext.NewReader(src))
	var b strings.Builder
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && b.Len() > 0 {
				b.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			writeCodeLines(&b, t, src)
		case *ast.CodeBlock:
			writeCodeLines(&b, t, src)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(b.String())
	if content == "" {
		return nil, nil
	}
	return []Section{{Content: content}}, nil
}

func writeCodeLines(b *strings.Builder, n ast.Node, src []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
}

func parsePDF(filePath string, _ Options) ([]Section, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var sections []Section
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		sections = append(sections, Section{Content: pageText, Page: i})
	}
	return sections, nil
}

func parseDOCX(filePath string, _ Options) ([]Section, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var paragraphs []string
	for _, p := range strings.Split(content, "</w:p>") {
		text := extractTaggedText(p, "<w:t", "</w:t>")
		if strings.TrimSpace(text) != "" {
			paragraphs = append(paragraphs, strings.TrimSpace(text))
		}
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []Section{{Content: strings.Join(paragraphs, "\n")}}, nil
}

func parseCSV(filePath string, opts Options) ([]Section, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	textCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), opts.CSVTextColumn) {
			textCol = i
			break
		}
	}

	// one logical document per row: either the configured text column, or
	// the whole row rendered as "header: value" lines when it is absent
	var sections []Section
	for _, row := range records[1:] {
		var content string
		if textCol >= 0 && textCol < len(row) {
			content = row[textCol]
		} else {
			var lines []string
			for i, cell := range row {
				if i < len(header) {
					lines = append(lines, header[i]+": "+cell)
				}
			}
			content = strings.Join(lines, "\n")
		}
		if strings.TrimSpace(content) != "" {
			sections = append(sections, Section{Content: content})
		}
	}
	return sections, nil
}

func parseJSON(filePath string, opts Options) ([]Section, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return sectionsFromValue(root, opts.JSONFieldPath)
}

func parseJSONL(filePath string, opts Options) ([]Section, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sections []Section
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, err
		}
		s, err := sectionsFromValue(record, opts.JSONLFieldPath)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}

// sectionsFromValue resolves a /-separated field path against a decoded
// JSON value. A string leaf yields one section, an array leaf one section
// per string element.
func sectionsFromValue(root any, fieldPath string) ([]Section, error) {
	value := root
	for _, key := range strings.Split(strings.Trim(fieldPath, "/"), "/") {
		if key == "" {
			continue
		}
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field path %s: expected object at %q", fieldPath, key)
		}
		value, ok = obj[key]
		if !ok {
			return nil, fmt.Errorf("field path %s: missing key %q", fieldPath, key)
		}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []Section{{Content: v}}, nil
	case []any:
		var sections []Section
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field path %s: array element is not a string", fieldPath)
			}
			if strings.TrimSpace(s) != "" {
				sections = append(sections, Section{Content: s})
			}
		}
		return sections, nil
	default:
		return nil, fmt.Errorf("field path %s: unsupported value type %T", fieldPath, value)
	}
}

func parseXLSX(filePath string, _ Options) ([]Section, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var sections []Section
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		if strings.TrimSpace(text.String()) != "" {
			sections = append(sections, Section{Content: text.String(), Page: sheetNum + 1})
		}
	}
	return sections, nil
}

func parseODS(filePath string, _ Options) ([]Section, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sections []Section
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		if strings.TrimSpace(text.String()) != "" {
			sections = append(sections, Section{Content: text.String(), Page: sheetNum + 1})
		}
	}
	return sections, nil
}

func parsePPTX(filePath string, _ Options) ([]Section, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sections []Section
	slideNum := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideNum++
		slideText := extractTaggedText(string(data), "<a:t", "</a:t>")
		if strings.TrimSpace(slideText) != "" {
			sections = append(sections, Section{Content: slideText, Page: slideNum})
		}
	}
	return sections, nil
}

// extractTaggedText pulls the text runs between openTag...> and closeTag,
// tolerating attributes on the opening tag.
func extractTaggedText(xmlContent, openTag, closeTag string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, openTag)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// a longer tag sharing the prefix (e.g. <w:tbl when looking for <w:t)
		if len(part) == 0 || (part[0] != '>' && part[0] != ' ') {
			continue
		}
		gt := strings.Index(part, ">")
		if gt < 0 || strings.HasSuffix(part[:gt], "/") {
			continue
		}
		rest := part[gt+1:]
		if end := strings.Index(rest, closeTag); end >= 0 {
			text.WriteString(rest[:end])
		}
	}
	return strings.TrimSpace(text.String())
}
