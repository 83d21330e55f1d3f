// Package normalize flattens NETCONF rpc-reply documents into domain records.
//
// Every lookup walks a named extraction path. A missing element, an index
// past the end of a sibling list, or a malformed field value is reported as
// errors.ErrStructuralMismatch; nothing in this package panics on bad input.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	cserrors "github.com/ccie14023/cataspark/internal/errors"
)

// Step is one element of an extraction path. Index < 0 selects every
// sibling with the name.
type Step struct {
	Name  string
	Index int
}

// Path is a sequence of steps starting at the document root.
type Path []Step

// Named extraction paths for each query type.
var (
	CPUProcessPath         = MustParsePath("rpc-reply/data/cpu-usage/cpu-utilization/cpu-usage-processes/cpu-usage-process")
	MemoryProcessPath      = MustParsePath("rpc-reply/data/memory-usage-processes/memory-usage-process")
	BGPNeighborPath        = MustParsePath("rpc-reply/data/bgp-state/neighbors/neighbor")
	BGPNeighborSummaryPath = MustParsePath("rpc-reply/data/bgp-state/address-families/address-family/bgp-neighbor-summaries/bgp-neighbor-summary")
	RoutePath              = MustParsePath("rpc-reply/data/routing-state/routing-instance[1]/ribs/rib[0]/routes/route")
)

// ParsePath parses "a/b[1]/c" into a Path.
func ParsePath(s string) (Path, error) {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return nil, fmt.Errorf("empty path")
	}

	var path Path
	for _, part := range strings.Split(s, "/") {
		step := Step{Name: part, Index: -1}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, fmt.Errorf("unterminated index in %q", part)
			}
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("invalid index in %q", part)
			}
			step = Step{Name: part[:open], Index: idx}
		}
		if step.Name == "" {
			return nil, fmt.Errorf("empty step in %q", s)
		}
		path = append(path, step)
	}
	return path, nil
}

// MustParsePath is ParsePath for package-level constants.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, step := range p {
		if step.Index >= 0 {
			parts[i] = fmt.Sprintf("%s[%d]", step.Name, step.Index)
		} else {
			parts[i] = step.Name
		}
	}
	return strings.Join(parts, "/")
}

// Parse reads a raw reply. Unparseable input is a structural mismatch.
func Parse(raw string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, cserrors.Mismatchf("parse reply: %v", err)
	}
	if doc.Root() == nil {
		return nil, cserrors.Mismatchf("reply has no root element")
	}
	return doc, nil
}

// Extract walks path from the document root. The last step returns all
// matching siblings unless it carries an index; intermediate steps without
// an index follow the first match.
func Extract(doc *etree.Document, path Path) ([]*etree.Element, error) {
	if doc == nil || len(path) == 0 {
		return nil, cserrors.Mismatchf("nothing to extract")
	}
	root := doc.Root()
	if root == nil || root.Tag != path[0].Name {
		return nil, cserrors.Mismatchf("root is not %q", path[0].Name)
	}

	current := []*etree.Element{root}
	for i, step := range path[1:] {
		last := i == len(path)-2
		matches := current[0].SelectElements(step.Name)
		if len(matches) == 0 {
			return nil, cserrors.Mismatchf("%s: no %q element", path, step.Name)
		}
		switch {
		case step.Index >= 0:
			if step.Index >= len(matches) {
				return nil, cserrors.Mismatchf("%s: index %d out of range (%d %q elements)", path, step.Index, len(matches), step.Name)
			}
			current = matches[step.Index : step.Index+1]
		case last:
			current = matches
		default:
			current = matches[:1]
		}
	}
	return current, nil
}

// Field returns the trimmed text of a descendant named by a slash path
// relative to el.
func Field(el *etree.Element, name string) (string, bool) {
	cur := el
	for _, part := range strings.Split(name, "/") {
		if cur == nil {
			return "", false
		}
		cur = cur.SelectElement(part)
	}
	if cur == nil {
		return "", false
	}
	return strings.TrimSpace(cur.Text()), true
}
