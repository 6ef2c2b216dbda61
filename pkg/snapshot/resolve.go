package snapshot

import (
	"strings"

	"github.com/devicelab-dev/selfheal/pkg/locator"
)

// Resolve attempts direct resolution of a locator against the snapshot.
// Returns the first matching node in document order, or false if no
// node matches. "No match" is a normal outcome, not an error.
func (s *Snapshot) Resolve(loc locator.Locator) (*Node, bool) {
	for _, n := range s.Nodes {
		if matches(n, loc) {
			return n, true
		}
	}
	return nil, false
}

func matches(n *Node, loc locator.Locator) bool {
	switch loc.Kind {
	case locator.ID:
		return n.ID == loc.Value
	case locator.Name:
		return n.Attr("name") == loc.Value
	case locator.Text:
		return strings.TrimSpace(n.Text) == strings.TrimSpace(loc.Value)
	case locator.PartialText:
		return loc.Value != "" && containsIgnoreCase(n.Text, loc.Value)
	case locator.ClassName:
		return n.HasClass(loc.Value)
	case locator.TagName:
		return strings.EqualFold(n.Tag, loc.Value)
	case locator.CSS:
		return matchesCSS(n, loc.Value)
	case locator.XPath:
		return matchesXPath(n, loc.Value)
	}
	return false
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// matchesCSS evaluates a simple selector against a single node.
// Supported subset: tag, #id, .class (repeatable) and [attr=value]
// suffixes, in any combination (e.g. "button#submit.primary",
// "input[name='q']"). Combinators are not supported; snapshots are
// flat candidate lists, and the selectors the engine itself generates
// stay within this subset.
func matchesCSS(n *Node, sel string) bool {
	sel = strings.TrimSpace(sel)
	if sel == "" || sel == "*" {
		return sel == "*"
	}

	// Attribute suffixes
	for {
		open := strings.LastIndex(sel, "[")
		if open < 0 {
			break
		}
		end := strings.LastIndex(sel, "]")
		if end < open {
			return false // malformed
		}
		if !matchesAttrSelector(n, sel[open+1:end]) {
			return false
		}
		sel = sel[:open] + sel[end+1:]
	}

	if sel == "" {
		return true
	}

	// Split into tag / #id / .class tokens
	rest := sel
	for rest != "" {
		var token string
		cut := len(rest)
		for i := 1; i < len(rest); i++ {
			if rest[i] == '#' || rest[i] == '.' {
				cut = i
				break
			}
		}
		token, rest = rest[:cut], rest[cut:]

		switch {
		case strings.HasPrefix(token, "#"):
			if n.ID != token[1:] {
				return false
			}
		case strings.HasPrefix(token, "."):
			if !n.HasClass(token[1:]) {
				return false
			}
		default:
			if !strings.EqualFold(n.Tag, token) {
				return false
			}
		}
	}
	return true
}

// matchesAttrSelector evaluates the inside of a [...] attribute
// selector: "attr", "attr=value", "attr='value'" or `attr="value"`.
func matchesAttrSelector(n *Node, expr string) bool {
	expr = strings.TrimSpace(expr)
	idx := strings.Index(expr, "=")
	if idx < 0 {
		return n.Attr(expr) != ""
	}
	name := strings.TrimSpace(expr[:idx])
	value := strings.TrimSpace(expr[idx+1:])
	value = strings.Trim(value, `'"`)
	if name == "id" {
		return n.ID == value
	}
	if name == "class" {
		return n.HasClass(value)
	}
	return n.Attr(name) == value
}

// matchesXPath evaluates a pragmatic XPath subset against a single
// node: //tag or //* with optional [@attr='value'] or
// [contains(text(),'value')] predicates. Full XPath axes are a driver
// concern; the engine only needs enough to validate locators that
// test suites and the healing strategies actually produce.
func matchesXPath(n *Node, expr string) bool {
	expr = strings.TrimSpace(expr)

	// Unwrap "(//tag)[1]"-style grouping before splitting predicates.
	if strings.HasPrefix(expr, "(") {
		if end := strings.Index(expr, ")"); end >= 0 {
			expr = expr[1:end] + expr[end+1:]
		}
	}
	expr = strings.TrimPrefix(expr, "//")

	tag := expr
	var preds []string
	if open := strings.Index(expr, "["); open >= 0 {
		tag = expr[:open]
		rest := expr[open:]
		for strings.HasPrefix(rest, "[") {
			end := strings.Index(rest, "]")
			if end < 0 {
				return false
			}
			preds = append(preds, rest[1:end])
			rest = rest[end+1:]
		}
	}

	if tag != "*" && tag != "" && !strings.EqualFold(n.Tag, tag) {
		return false
	}

	for _, p := range preds {
		if !matchesXPathPredicate(n, p) {
			return false
		}
	}
	return true
}

func matchesXPathPredicate(n *Node, pred string) bool {
	pred = strings.TrimSpace(pred)

	// Positional predicates like [1] are ignored: the snapshot resolver
	// already returns the first match in document order.
	if isDigits(pred) {
		return true
	}

	if strings.HasPrefix(pred, "contains(text()") {
		idx := strings.Index(pred, ",")
		if idx < 0 {
			return false
		}
		arg := strings.TrimSuffix(strings.TrimSpace(pred[idx+1:]), ")")
		arg = strings.Trim(arg, `'"`)
		return containsIgnoreCase(n.Text, arg)
	}

	if strings.HasPrefix(pred, "text()") {
		idx := strings.Index(pred, "=")
		if idx < 0 {
			return false
		}
		arg := strings.Trim(strings.TrimSpace(pred[idx+1:]), `'"`)
		return strings.TrimSpace(n.Text) == arg
	}

	if strings.HasPrefix(pred, "@") {
		idx := strings.Index(pred, "=")
		if idx < 0 {
			return n.Attr(pred[1:]) != ""
		}
		name := pred[1:idx]
		value := strings.Trim(strings.TrimSpace(pred[idx+1:]), `'"`)
		if name == "id" {
			return n.ID == value
		}
		return n.Attr(name) == value
	}

	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Describe derives the most stable replacement locator for a node:
// id when present, then name, then a css tag.class selector, falling
// back to the bare tag. Used to turn a healed node back into a locator
// that can be cached and replayed.
func Describe(n *Node) locator.Locator {
	if n.ID != "" {
		return locator.New(locator.ID, n.ID)
	}
	if name := n.Attr("name"); name != "" {
		return locator.New(locator.Name, name)
	}
	if len(n.Classes) > 0 {
		return locator.New(locator.CSS, n.Tag+"."+strings.Join(n.Classes, "."))
	}
	if strings.TrimSpace(n.Text) != "" {
		return locator.New(locator.Text, strings.TrimSpace(n.Text))
	}
	return locator.New(locator.TagName, n.Tag)
}
