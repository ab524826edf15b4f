package htmldom

import "strings"

// inlineStyle returns the value of one declaration of a style attribute.
// Later declarations win, as in the browser.
func inlineStyle(style, property string) string {
	property = strings.ToLower(strings.TrimSpace(property))
	var val string
	for _, decl := range splitDeclarations(style) {
		colon := strings.IndexByte(decl, ':')
		if colon < 0 {
			continue
		}
		if strings.ToLower(strings.TrimSpace(decl[:colon])) != property {
			continue
		}
		v := strings.TrimSpace(decl[colon+1:])
		v = strings.TrimSpace(strings.TrimSuffix(v, "!important"))
		val = v
	}
	return val
}

// splitDeclarations splits on ';' outside parentheses and quotes, so data
// URLs inside url(...) stay intact.
func splitDeclarations(s string) []string {
	var out []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case quote != 0:
			if b == quote {
				quote = 0
			}
		case b == '"' || b == '\'':
			quote = b
		case b == '(':
			depth++
		case b == ')':
			if depth > 0 {
				depth--
			}
		case b == ';' && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
