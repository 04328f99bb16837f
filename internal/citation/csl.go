package citation

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

// CSLItem is a bibliographic entry in CSL-YAML form, readable by Pandoc and
// reference managers.
type CSLItem struct {
	ID       string    `yaml:"id"`
	Type     string    `yaml:"type"`
	Title    string    `yaml:"title"`
	Author   []CSLName `yaml:"author,omitempty"`
	Issued   *CSLDate  `yaml:"issued,omitempty"`
	Accessed *CSLDate  `yaml:"accessed,omitempty"`
	URL      string    `yaml:"URL,omitempty"`
	DOI      string    `yaml:"DOI,omitempty"`
	Volume   string    `yaml:"volume,omitempty"`
}

type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

var cslTypes = map[GroupName]string{
	GroupAcademic: "article-journal",
	GroupWeb:      "webpage",
	GroupOther:    "document",
}

// WriteCSL writes the form's sources as a CSL-YAML list.
func WriteCSL(f *Form, w io.Writer) error {
	items := make([]CSLItem, 0, f.Len())
	for i, src := range f.Sources() {
		items = append(items, ToCSLItem(fmt.Sprintf("source-%d", i+1), src))
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func ToCSLItem(id string, src Source) CSLItem {
	base := src.Base()
	item := CSLItem{
		ID:       id,
		Type:     cslTypes[Classify(base.Type)],
		Title:    base.Title,
		Issued:   parseCSLDate(base.PublishedDate),
		Accessed: parseCSLDate(base.AccessDate),
		URL:      SourceURL(src),
	}
	for _, name := range splitAuthors(base.Authors) {
		item.Author = append(item.Author, parseAuthorName(name))
	}
	if web, ok := src.(WebSource); ok {
		item.DOI = strings.TrimSpace(web.DOI)
		item.Volume = strings.TrimSpace(web.Volume)
	}
	return item
}

// splitAuthors separates an author list on semicolons or " and ".
func splitAuthors(authors string) []string {
	authors = strings.ReplaceAll(authors, " and ", ";")
	var out []string
	for _, part := range strings.Split(authors, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseAuthorName accepts "Family, Given" or "Given Family". Single tokens use
// the literal field.
func parseAuthorName(name string) CSLName {
	if family, given, ok := strings.Cut(name, ","); ok {
		return CSLName{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{Given: name[:idx], Family: name[idx+1:]}
}

// parseCSLDate reads YYYY, YYYY-MM or YYYY-MM-DD prefixes. Anything else is
// dropped.
func parseCSLDate(value string) *CSLDate {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if len(value) > 10 {
		value = value[:10]
	}
	var parts []int
	for _, field := range strings.Split(value, "-") {
		n, err := strconv.Atoi(field)
		if err != nil {
			break
		}
		parts = append(parts, n)
	}
	if len(parts) == 0 {
		return nil
	}
	return &CSLDate{DateParts: [][]int{parts}}
}
