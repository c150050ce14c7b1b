package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// HeadingMarkerAttr mirrors the assigned anchor id on every annotated heading.
const HeadingMarkerAttr = "data-heading-id"

// HeadingRecord describes one heading seen during a single annotation pass.
type HeadingRecord struct {
	Tag        string `json:"tag"`
	SourceText string `json:"source_text"`
	AssignedID string `json:"assigned_id"`
}

var (
	// headingScanPattern finds heading start tags plus the comment and raw-text regions in
	// which tag-shaped text must be left alone.
	headingScanPattern   = regexp.MustCompile(`(?i)<!--|<(script|style|textarea|title)[\s/>]|<(h[2-4])[\s/>]`)
	rawTextClosePatterns = map[string]*regexp.Regexp{
		"script":   regexp.MustCompile(`(?i)</script\s*>`),
		"style":    regexp.MustCompile(`(?i)</style\s*>`),
		"textarea": regexp.MustCompile(`(?i)</textarea\s*>`),
		"title":    regexp.MustCompile(`(?i)</title\s*>`),
	}
	headingClosePatterns = map[string]*regexp.Regexp{
		"h2": regexp.MustCompile(`(?i)</h2\s*>`),
		"h3": regexp.MustCompile(`(?i)</h3\s*>`),
		"h4": regexp.MustCompile(`(?i)</h4\s*>`),
	}
	idAttrPattern     = regexp.MustCompile(`(?i)(^|\s)id\s*=\s*("[^"]*"|'[^']*'|[^\s"'>]+)`)
	markerAttrPattern = regexp.MustCompile(`(?i)\s+` + regexp.QuoteMeta(HeadingMarkerAttr) + `\s*=\s*("[^"]*"|'[^']*'|[^\s"'>]+)`)
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	nonAlnumPattern   = regexp.MustCompile(`[^a-z0-9]+`)
)

// headingTag locates one heading start tag in the source.
type headingTag struct {
	start   int // index of '<'
	nameEnd int
	end     int // index of the closing '>'
	name    string
	level   string
	inner   string
}

// AnnotateHeadings assigns a unique anchor id to every h2-h4 element in src.
// Only heading start tags are rewritten; all other bytes are copied unchanged.
func AnnotateHeadings(src string) (string, []HeadingRecord) {
	tags := findHeadings(src)
	if len(tags) == 0 {
		return src, nil
	}

	// Author ids are reserved up front so a generated id never repeats one that appears
	// later in the document.
	used := make(map[string]struct{})
	for _, tag := range tags {
		if id, ok := existingID(src[tag.nameEnd:tag.end]); ok {
			used[id] = struct{}{}
		}
	}

	var (
		out     strings.Builder
		records = make([]HeadingRecord, 0, len(tags))
		pos     int
	)
	out.Grow(len(src) + 64*len(tags))

	for i, tag := range tags {
		ordinal := i + 1
		attrs := src[tag.nameEnd:tag.end]
		selfClosing := strings.HasSuffix(strings.TrimSpace(attrs), "/")
		if selfClosing {
			attrs = strings.TrimSuffix(strings.TrimRight(attrs, " \t\r\n"), "/")
		}
		attrs = markerAttrPattern.ReplaceAllString(attrs, "")

		sourceText := headingText(tag.inner)
		assigned, existing := existingID(attrs)
		if !existing {
			attrs = idAttrPattern.ReplaceAllString(attrs, "")
			assigned = uniqueHeadingID(slugify(sourceText), ordinal, used)
		}

		out.WriteString(src[pos:tag.start])
		out.WriteByte('<')
		out.WriteString(tag.name)
		out.WriteString(attrs)
		if !existing {
			fmt.Fprintf(&out, ` id="%s"`, assigned)
		}
		fmt.Fprintf(&out, ` %s="%s"`, HeadingMarkerAttr, strings.ReplaceAll(assigned, `"`, "&quot;"))
		if selfClosing {
			out.WriteString(" /")
		}
		out.WriteByte('>')

		records = append(records, HeadingRecord{Tag: tag.level, SourceText: sourceText, AssignedID: assigned})
		pos = tag.end + 1
	}
	out.WriteString(src[pos:])
	return out.String(), records
}

// findHeadings lists heading start tags outside comments and raw-text elements.
func findHeadings(src string) []headingTag {
	var (
		tags []headingTag
		pos  int
	)
	for pos < len(src) {
		loc := headingScanPattern.FindStringSubmatchIndex(src[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		switch {
		case loc[2] >= 0:
			openEnd, ok := scanTagEnd(src, pos+loc[3])
			if !ok {
				return tags
			}
			closing := rawTextClosePatterns[strings.ToLower(src[pos+loc[2]:pos+loc[3]])]
			closeLoc := closing.FindStringIndex(src[openEnd+1:])
			if closeLoc == nil {
				return tags
			}
			pos = openEnd + 1 + closeLoc[1]
		case loc[4] >= 0:
			nameEnd := pos + loc[5]
			name := src[pos+loc[4] : nameEnd]
			end, ok := scanTagEnd(src, nameEnd)
			if !ok {
				return tags
			}
			tag := headingTag{start: start, nameEnd: nameEnd, end: end, name: name, level: strings.ToLower(name)}
			if closeLoc := headingClosePatterns[tag.level].FindStringIndex(src[end+1:]); closeLoc != nil {
				tag.inner = src[end+1 : end+1+closeLoc[0]]
			}
			tags = append(tags, tag)
			pos = end + 1
		default:
			closeAt := strings.Index(src[start+4:], "-->")
			if closeAt < 0 {
				return tags
			}
			pos = start + 4 + closeAt + 3
		}
	}
	return tags
}

func uniqueHeadingID(candidate string, ordinal int, used map[string]struct{}) string {
	id := candidate
	if id == "" {
		id = fmt.Sprintf("heading-%d", ordinal)
	} else if _, taken := used[id]; taken {
		id = fmt.Sprintf("%s-%d", candidate, ordinal)
	}
	base := id
	for n := 2; ; n++ {
		if _, taken := used[id]; !taken {
			break
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
	used[id] = struct{}{}
	return id
}

func existingID(attrs string) (string, bool) {
	match := idAttrPattern.FindStringSubmatch(attrs)
	if match == nil {
		return "", false
	}
	value := strings.Trim(match[2], `"'`)
	if strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

func headingText(inner string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(inner, "")))
}

// slugify lowercases text and collapses every run of non [a-z0-9] characters into one hyphen.
func slugify(text string) string {
	slug := nonAlnumPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "-")
	return strings.Trim(slug, "-")
}

// Slugify exposes the anchor slug rules for callers deriving record slugs.
func Slugify(text string) string {
	return slugify(text)
}

// scanTagEnd returns the index of the '>' closing the start tag that begins before from.
// Quoted values and JSX style brace values are skipped so a '>' inside them is not mistaken
// for the end of the tag.
func scanTagEnd(src string, from int) (int, bool) {
	var (
		quote byte
		depth int
	)
	for i := from; i < len(src); i++ {
		ch := src[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			if depth > 0 || isAttrValueStart(src, i) {
				quote = ch
			}
		case ch == '{':
			depth++
		case ch == '}':
			if depth > 0 {
				depth--
			}
		case ch == '>' && depth == 0:
			return i, true
		}
	}
	return 0, false
}

// isAttrValueStart reports whether the quote at i opens an attribute value (preceded by '=').
func isAttrValueStart(src string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch src[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '=':
			return true
		default:
			return false
		}
	}
	return false
}
