package render

import (
	"regexp"
	"strings"
)

// EventKind pairs a DOM event with the attribute spellings authors use for it.
type EventKind struct {
	Name          string
	HTMLAttr      string
	FrameworkAttr string
}

// EventKinds lists every event whose inline handler attributes are normalised and bound.
var EventKinds = []EventKind{
	{Name: "click", HTMLAttr: "onclick", FrameworkAttr: "onClick"},
	{Name: "change", HTMLAttr: "onchange", FrameworkAttr: "onChange"},
	{Name: "submit", HTMLAttr: "onsubmit", FrameworkAttr: "onSubmit"},
	{Name: "mouseover", HTMLAttr: "onmouseover", FrameworkAttr: "onMouseOver"},
	{Name: "mouseout", HTMLAttr: "onmouseout", FrameworkAttr: "onMouseOut"},
	{Name: "focus", HTMLAttr: "onfocus", FrameworkAttr: "onFocus"},
	{Name: "blur", HTMLAttr: "onblur", FrameworkAttr: "onBlur"},
	{Name: "keydown", HTMLAttr: "onkeydown", FrameworkAttr: "onKeyDown"},
	{Name: "keyup", HTMLAttr: "onkeyup", FrameworkAttr: "onKeyUp"},
	{Name: "keypress", HTMLAttr: "onkeypress", FrameworkAttr: "onKeyPress"},
	{Name: "load", HTMLAttr: "onload", FrameworkAttr: "onLoad"},
	{Name: "error", HTMLAttr: "onerror", FrameworkAttr: "onError"},
	{Name: "dblclick", HTMLAttr: "ondblclick", FrameworkAttr: "onDoubleClick"},
}

var (
	handlerAttrNames   = buildHandlerAttrNames()
	handlerAttrPattern = regexp.MustCompile(`(?i)(^|[\s"'/])(on(?:click|change|submit|mouseover|mouseout|focus|blur|keydown|keyup|keypress|load|error|dblclick|doubleclick))\s*=\s*`)
	arrowPrefixPattern = regexp.MustCompile(`^\(\s*\)\s*=>\s*`)
)

func buildHandlerAttrNames() map[string]string {
	names := make(map[string]string, len(EventKinds)*2)
	for _, kind := range EventKinds {
		names[strings.ToLower(kind.HTMLAttr)] = kind.HTMLAttr
		names[strings.ToLower(kind.FrameworkAttr)] = kind.HTMLAttr
	}
	return names
}

// NormalizeHandlers rewrites framework style and loosely quoted event handler attributes
// into lower-case HTML handler attributes whose value is wrapped in double quotes.
//
// Recognised value shapes, in precedence order:
//
//	onClick={() => expr}   arrow function, one level of braces around expr is unwrapped
//	onClick={expr}         bare expression
//	onClick="code"         double quoted
//	onClick='code'         single quoted
//
// Every double quote inside the extracted code becomes a single quote. Running the
// function on its own output returns the output unchanged.
func NormalizeHandlers(src string) string {
	var (
		out strings.Builder
		pos int
	)
	out.Grow(len(src))

	for pos < len(src) {
		loc := handlerAttrPattern.FindStringSubmatchIndex(src[pos:])
		if loc == nil {
			break
		}
		nameStart := pos + loc[4]
		nameEnd := pos + loc[5]
		valueStart := pos + loc[1]

		code, valueEnd, ok := extractHandlerValue(src, valueStart)
		if !ok {
			out.WriteString(src[pos:valueStart])
			pos = valueStart
			continue
		}

		out.WriteString(src[pos:nameStart])
		out.WriteString(handlerAttrNames[strings.ToLower(src[nameStart:nameEnd])])
		out.WriteString(`="`)
		out.WriteString(quoteSafe(code))
		out.WriteByte('"')
		pos = valueEnd
	}
	out.WriteString(src[pos:])
	return out.String()
}

// extractHandlerValue reads the attribute value starting at i and returns the handler code
// together with the index just past the value.
func extractHandlerValue(src string, i int) (string, int, bool) {
	if i >= len(src) {
		return "", i, false
	}
	switch src[i] {
	case '{':
		end, ok := matchBrace(src, i)
		if !ok {
			return "", i, false
		}
		return unwrapExpression(src[i+1 : end]), end + 1, true
	case '"', '\'':
		end := strings.IndexByte(src[i+1:], src[i])
		if end < 0 {
			return "", i, false
		}
		return src[i+1 : i+1+end], i + end + 2, true
	default:
		return "", i, false
	}
}

// unwrapExpression strips an empty-parameter arrow prefix and one level of surrounding braces.
func unwrapExpression(expr string) string {
	expr = strings.TrimSpace(expr)
	if loc := arrowPrefixPattern.FindStringIndex(expr); loc != nil {
		expr = strings.TrimSpace(expr[loc[1]:])
		if len(expr) >= 2 && expr[0] == '{' && expr[len(expr)-1] == '}' {
			expr = strings.TrimSpace(expr[1 : len(expr)-1])
		}
	}
	return expr
}

// matchBrace returns the index of the brace closing the one at open. String literals
// (single, double and backtick quoted) are skipped.
func matchBrace(src string, open int) (int, bool) {
	var (
		depth int
		quote byte
	)
	for i := open; i < len(src); i++ {
		ch := src[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'', '`':
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// CleanHandlerCode applies the same shape detection as NormalizeHandlers to a single
// attribute value, as read back from a parsed element.
func CleanHandlerCode(raw string) string {
	code := strings.TrimSpace(raw)
	switch {
	case len(code) >= 2 && code[0] == '{':
		if end, ok := matchBrace(code, 0); ok && end == len(code)-1 {
			code = unwrapExpression(code[1:end])
		}
	case len(code) >= 2 && (code[0] == '"' || code[0] == '\'') && code[len(code)-1] == code[0]:
		code = code[1 : len(code)-1]
	}
	return strings.TrimSpace(quoteSafe(code))
}

func quoteSafe(code string) string {
	return strings.ReplaceAll(code, `"`, `'`)
}
