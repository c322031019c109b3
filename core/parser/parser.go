// Package parser reads the textual event type language into
// schema.TypeDeclaration values.
//
// A declaration is an indentation-structured document:
//
//	type: meeting
//	name: "Team Meeting"
//	fields:
//	  - attendees: list of email, required
//	  - room: string, default="Main"
//	validate:
//	  - attendees.count >= 1
//	  - rule: startTime.hour between 8 and 18
//	    message: "meetings happen during office hours"
//	display:
//	  color: "#4285f4"
//	  title: "${title} (${attendees.count})"
//	behavior:
//	  draggable: true
//
// Several declarations may share one file, separated by "---".
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/eventdsl/core/expr"
	"github.com/artpar/eventdsl/core/schema"
)

// Extensions lists the file extensions ParseDir reads.
var Extensions = []string{".evt", ".yaml", ".yml"}

// SyntaxError reports malformed declaration text.
type SyntaxError struct {
	File    string
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func syntaxErrorf(line int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Line: line, Message: fmt.Sprintf(format, args...)}
}

// Top-level keys.
const (
	keyType        = "type"
	keyName        = "name"
	keyDescription = "description"
	keyFields      = "fields"
	keyValidate    = "validate"
	keyDisplay     = "display"
	keyBehavior    = "behavior"
)

// Parse parses exactly one declaration.
func Parse(text string) (schema.TypeDeclaration, error) {
	decls, err := ParseAll(text)
	if err != nil {
		return schema.TypeDeclaration{}, err
	}
	switch len(decls) {
	case 0:
		return schema.TypeDeclaration{}, syntaxErrorf(1, "no declaration found")
	case 1:
		return decls[0], nil
	default:
		return schema.TypeDeclaration{}, syntaxErrorf(1, "expected one declaration, found %d", len(decls))
	}
}

// ParseAll parses every declaration in text. Documents are separated by
// "---"; empty documents are skipped. Each validate item is read as rule
// text up to an unquoted " #" comment, not as a YAML value.
func ParseAll(text string) ([]schema.TypeDeclaration, error) {
	dec := yaml.NewDecoder(strings.NewReader(quoteRules(text)))

	var decls []schema.TypeDeclaration
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fromYAMLError(err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
			continue
		}

		d, err := parseDeclaration(root)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, nil
}

// SplitDocuments returns the source text of every non-empty document in
// text, re-encoded one document per string.
func SplitDocuments(text string) ([]string, error) {
	dec := yaml.NewDecoder(strings.NewReader(quoteRules(text)))

	var docs []string
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fromYAMLError(err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		if root := doc.Content[0]; root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
			continue
		}
		out, err := yaml.Marshal(&doc)
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		docs = append(docs, string(out))
	}
	return docs, nil
}

// ParseFile parses all declarations in the file at path. Syntax errors
// carry the file name.
func ParseFile(path string) ([]schema.TypeDeclaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	decls, err := ParseAll(string(data))
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			se.File = path
		}
		return nil, err
	}
	return decls, nil
}

// ParseDir parses every declaration file under dir, including
// subdirectories, in lexical file order.
func ParseDir(dir string) ([]schema.TypeDeclaration, error) {
	var decls []schema.TypeDeclaration

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			decls = append(decls, sub...)
			continue
		}

		if !HasExtension(entry.Name()) {
			continue
		}

		fileDecls, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		decls = append(decls, fileDecls...)
	}

	return decls, nil
}

// HasExtension reports whether name ends with one of Extensions.
func HasExtension(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

func fromYAMLError(err error) *SyntaxError {
	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	line := 1
	if m := yamlLine.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
		msg = strings.TrimSpace(strings.Replace(msg, m[0]+":", "", 1))
	}
	return &SyntaxError{Line: line, Message: msg}
}

func parseDeclaration(root *yaml.Node) (schema.TypeDeclaration, error) {
	var d schema.TypeDeclaration

	if root.Kind != yaml.MappingNode {
		return d, syntaxErrorf(root.Line, "declaration must be a mapping of keys")
	}

	seen := make(map[string]bool)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if seen[key.Value] {
			return d, syntaxErrorf(key.Line, "duplicate key %q", key.Value)
		}
		seen[key.Value] = true

		var err error
		switch key.Value {
		case keyType:
			d.ID, err = scalar(key, value)
			if err == nil && !isValidTypeID(d.ID) {
				err = syntaxErrorf(value.Line, "type %q is not a valid identifier", d.ID)
			}
		case keyName:
			d.Name, err = scalar(key, value)
		case keyDescription:
			d.Description, err = scalar(key, value)
		case keyFields:
			d.Fields, err = parseFields(value)
		case keyValidate:
			d.Rules, err = parseRules(value)
		case keyDisplay:
			d.Display, err = parseDisplay(value)
		case keyBehavior:
			d.Behavior, err = parseBehavior(value)
		default:
			err = syntaxErrorf(key.Line, "unknown key %q", key.Value)
		}
		if err != nil {
			return schema.TypeDeclaration{}, err
		}
	}

	if !seen[keyType] {
		return schema.TypeDeclaration{}, syntaxErrorf(root.Line, "missing required key %q", keyType)
	}
	for _, r := range d.Rules {
		if err := requireBooleanFields(r.Expr, d.Fields); err != nil {
			return schema.TypeDeclaration{}, syntaxErrorf(r.Line, "invalid rule %q: %v", r.Expr.String(), err)
		}
	}
	return d, nil
}

func scalar(key, value *yaml.Node) (string, error) {
	if value.Kind != yaml.ScalarNode {
		return "", syntaxErrorf(value.Line, "%s must be a single value", key.Value)
	}
	return value.Value, nil
}

func parseFields(node *yaml.Node) ([]schema.FieldDeclaration, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, syntaxErrorf(node.Line, "fields must be a list")
	}

	fields := make([]schema.FieldDeclaration, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, syntaxErrorf(item.Line, "field must be written as <name>: <type>")
		}
		name, spec := item.Content[0], item.Content[1]
		if !isValidIdentifier(name.Value) {
			return nil, syntaxErrorf(name.Line, "field name %q is not a valid identifier", name.Value)
		}
		if spec.Kind != yaml.ScalarNode {
			return nil, syntaxErrorf(spec.Line, "field %q: type must be a single value", name.Value)
		}

		f, err := parseFieldSpec(name.Value, spec.Value)
		if err != nil {
			return nil, syntaxErrorf(spec.Line, "field %q: %v", name.Value, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// parseFieldSpec parses "<type>[, required][, default=<lit>][, enum=[a|b]]".
func parseFieldSpec(name, text string) (schema.FieldDeclaration, error) {
	f := schema.FieldDeclaration{Name: name}

	parts := splitTopLevel(text, ',')
	t, err := schema.ParseFieldType(parts[0])
	if err != nil {
		return f, err
	}
	f.Type = t

	for _, raw := range parts[1:] {
		mod := strings.TrimSpace(raw)
		key, val, hasVal := strings.Cut(mod, "=")
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch {
		case key == "required" && !hasVal:
			f.Required = true
		case key == "optional" && !hasVal:
			f.Required = false
		case key == "default" && hasVal:
			f.Default = literalOrText(val)
		case key == "enum" && hasVal:
			values, err := parseEnum(val)
			if err != nil {
				return f, err
			}
			f.Enum = values
		default:
			return f, fmt.Errorf("unknown modifier %q", mod)
		}
	}
	return f, nil
}

func parseEnum(text string) ([]any, error) {
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return nil, fmt.Errorf("enum must be written as [a|b|c]")
	}
	inner := strings.TrimSpace(text[1 : len(text)-1])
	if inner == "" {
		return nil, fmt.Errorf("enum must list at least one value")
	}

	sep := byte('|')
	if !strings.Contains(inner, "|") {
		sep = ','
	}
	var values []any
	for _, item := range splitTopLevel(inner, sep) {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, fmt.Errorf("empty enum value")
		}
		values = append(values, literalOrText(item))
	}
	return values, nil
}

// literalOrText reads a literal, falling back to the raw text for values
// such as dates or addresses that are not literal syntax.
func literalOrText(text string) any {
	v, err := ParseLiteral(text)
	if err != nil {
		return text
	}
	return v
}

// splitTopLevel splits s on sep, ignoring separators inside brackets or
// quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
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
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func parseRules(node *yaml.Node) ([]schema.ValidationRule, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, syntaxErrorf(node.Line, "validate must be a list")
	}

	rules := make([]schema.ValidationRule, 0, len(node.Content))
	for _, item := range node.Content {
		var (
			text    string
			message string
			line    = item.Line
		)
		switch item.Kind {
		case yaml.ScalarNode:
			text = item.Value
		case yaml.MappingNode:
			for i := 0; i+1 < len(item.Content); i += 2 {
				k, v := item.Content[i], item.Content[i+1]
				if v.Kind != yaml.ScalarNode {
					return nil, syntaxErrorf(v.Line, "%s must be a single value", k.Value)
				}
				switch k.Value {
				case "rule":
					text, line = v.Value, v.Line
				case "message":
					message = v.Value
				default:
					return nil, syntaxErrorf(k.Line, "unknown rule key %q", k.Value)
				}
			}
		default:
			return nil, syntaxErrorf(item.Line, "rule must be an expression")
		}

		if strings.TrimSpace(text) == "" {
			return nil, syntaxErrorf(line, "rule has no expression")
		}
		e, err := ParseRule(text)
		if err != nil {
			return nil, syntaxErrorf(line, "invalid rule %q: %v", text, err)
		}
		rules = append(rules, schema.ValidationRule{Expr: e, Message: message, Line: line})
	}
	return rules, nil
}

func parseDisplay(node *yaml.Node) ([]schema.DisplayBinding, error) {
	if node.Kind != yaml.MappingNode {
		return nil, syntaxErrorf(node.Line, "display must be a mapping of keys")
	}

	seen := make(map[string]bool)
	bindings := make([]schema.DisplayBinding, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return nil, syntaxErrorf(key.Line, "duplicate display key %q", key.Value)
		}
		seen[key.Value] = true

		switch value.Kind {
		case yaml.ScalarNode:
			bindings = append(bindings, schema.DisplayBinding{Key: key.Value, Value: value.Value})
		case yaml.MappingNode:
			e, err := parseComputed(key.Value, value)
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, schema.DisplayBinding{Key: key.Value, Expr: e})
		default:
			return nil, syntaxErrorf(value.Line, "display %q must be a single value", key.Value)
		}
	}
	return bindings, nil
}

// parseComputed reads the {expr: <expression>} form of a display binding.
func parseComputed(name string, node *yaml.Node) (expr.Expr, error) {
	if len(node.Content) != 2 || node.Content[0].Value != "expr" || node.Content[1].Kind != yaml.ScalarNode {
		return nil, syntaxErrorf(node.Line, "display %q must be a value or {expr: <expression>}", name)
	}
	text := node.Content[1]
	e, err := ParseExpression(text.Value)
	if err != nil {
		return nil, syntaxErrorf(text.Line, "display %q: invalid expression %q: %v", name, text.Value, err)
	}
	return e, nil
}

func parseBehavior(node *yaml.Node) ([]schema.BehaviorBinding, error) {
	if node.Kind != yaml.MappingNode {
		return nil, syntaxErrorf(node.Line, "behavior must be a mapping of keys")
	}

	seen := make(map[string]bool)
	bindings := make([]schema.BehaviorBinding, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return nil, syntaxErrorf(key.Line, "duplicate behavior key %q", key.Value)
		}
		seen[key.Value] = true

		if value.Kind != yaml.ScalarNode {
			return nil, syntaxErrorf(value.Line, "behavior %q must be a boolean, number or string", key.Value)
		}
		var v any
		if err := value.Decode(&v); err != nil {
			return nil, syntaxErrorf(value.Line, "behavior %q: %v", key.Value, err)
		}
		bindings = append(bindings, schema.BehaviorBinding{Key: key.Value, Value: v})
	}
	return bindings, nil
}

// isValidIdentifier checks if s is a valid field identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i == 0 && !isIdentStart(s[i]) || !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

// isValidTypeID is like isValidIdentifier but also accepts dashes after the
// first character.
func isValidTypeID(s string) bool {
	return isValidIdentifier(strings.ReplaceAll(s, "-", "_")) && !strings.HasPrefix(s, "-")
}
