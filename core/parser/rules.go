package parser

import "strings"

// quoteRules rewrites every plain rule under a block "validate:" section as
// a single-quoted YAML scalar so that rule text is never read as YAML: a
// literal may hold ": " or " #". Continuation lines of a multi-line rule are
// folded into the first line and left blank, so line numbers do not move.
// Quoted rules, flow collections and block scalars are left to YAML.
func quoteRules(text string) string {
	lines := strings.Split(text, "\n")

	var (
		inValidate bool
		cur        *pendingRule
	)
	flush := func() {
		if cur != nil {
			lines[cur.line] = cur.prefix + yamlQuote(cur.text)
			cur = nil
		}
	}

	for i, raw := range lines {
		line := strings.TrimSuffix(raw, "\r")
		trimmed := strings.TrimLeft(line, " ")
		indent := len(line) - len(trimmed)

		switch {
		case strings.HasPrefix(line, "---") || strings.HasPrefix(line, "..."):
			flush()
			inValidate = false
			continue
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			flush()
			continue
		}

		isItem := trimmed == "-" || strings.HasPrefix(trimmed, "- ")
		if indent == 0 && !(inValidate && isItem) {
			flush()
			key, rest, ok := strings.Cut(trimmed, ":")
			inValidate = ok && strings.TrimSpace(key) == keyValidate && stripComment(rest) == ""
			continue
		}
		if !inValidate {
			continue
		}

		if isItem {
			flush()
			body := strings.TrimLeft(strings.TrimPrefix(trimmed, "-"), " ")
			col := len(line) - len(body)
			if value, ok := strings.CutPrefix(body, "rule:"); ok {
				cur = startRule(i, line[:col+len("rule:")], value, col)
			} else if !strings.HasPrefix(body, "message:") {
				cur = startRule(i, line[:col], body, indent)
			}
			continue
		}

		if cur != nil && indent > cur.indent && !isRuleKey(trimmed) {
			cur.text += " " + stripComment(trimmed)
			lines[i] = ""
			continue
		}
		flush()
		if value, ok := strings.CutPrefix(trimmed, "rule:"); ok {
			cur = startRule(i, line[:indent+len("rule:")], value, indent)
		}
	}
	flush()
	return strings.Join(lines, "\n")
}

// pendingRule is a plain rule being collected from one or more lines.
type pendingRule struct {
	line   int
	prefix string
	text   string
	indent int // continuation lines are indented deeper than this
}

func startRule(line int, prefix, value string, indent int) *pendingRule {
	text := stripComment(value)
	if text == "" || isQuoted(text) || strings.ContainsAny(text[:1], "{[|>&*!") {
		return nil
	}
	if !strings.HasSuffix(prefix, " ") {
		prefix += " "
	}
	return &pendingRule{line: line, prefix: prefix, text: text, indent: indent}
}

func isRuleKey(s string) bool {
	return strings.HasPrefix(s, "rule:") || strings.HasPrefix(s, "message:")
}

// stripComment trims s and drops a trailing "#" comment outside quotes.
func stripComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#' && (i == 0 || s[i-1] == ' ' || s[i-1] == '\t'):
			return strings.TrimSpace(s[:i])
		}
	}
	return strings.TrimSpace(s)
}

// isQuoted reports whether s is exactly one YAML quoted scalar.
func isQuoted(s string) bool {
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') {
		return false
	}
	q := s[0]
	for i := 1; i < len(s); i++ {
		switch {
		case q == '"' && s[i] == '\\':
			i++
		case q == '\'' && s[i] == '\'' && i+1 < len(s) && s[i+1] == '\'':
			i++
		case s[i] == q:
			return i == len(s)-1
		}
	}
	return false
}

func yamlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
