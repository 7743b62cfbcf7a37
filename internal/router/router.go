// Package router implements a URI-template trie for dispatching inbound
// action requests to the handler registered for the closest-matching
// template, literal segments taking precedence over a wildcard at the same
// depth. It is the Go reshaping of the original firmware's
// ActionHandler._find_dedicated_handler trie.
package router

import (
	"strings"
	"sync"

	"github.com/les2feup/citylink/internal/domain"
)

// wildcardSegment is the token that stands for a template's "{var}" segment
// in the trie, e.g. "actions/set_prop/{name}" has one at depth 2 (counting
// from 0). Nodes hold that slot in their wildcard field, not in children.
const wildcardSegment = "*"

// ─── Trie ───────────────────────────────────────────────────────────────────

// node is one segment of the trie. A node with a non-nil handler is a
// registered template's terminus; children are keyed by literal segment
// text, with a single reserved wildcardSegment slot for the "{var}" case.
type node struct {
	handler  domain.Handler
	varName  string // the {name} this node's wildcard slot binds, if any
	children map[string]*node
	wildcard *node
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Router resolves an action topic's path segments to a registered handler,
// extracting any wildcard segments as positional Params in template order.
type Router struct {
	mu   sync.RWMutex
	root *node
}

// New returns an empty Router.
func New() *Router {
	return &Router{root: newNode()}
}

// Register binds handler to template, a '/'-separated path whose segments
// are either literal text or a "{name}" variable. The first segment of a
// template can never be a variable — it anchors the namespace the template
// lives under, mirroring the original handler's register_action validation.
// Registering the same template twice returns ErrDuplicateHandler.
func (r *Router) Register(template string, handler domain.Handler) error {
	segs := splitPath(template)
	if len(segs) == 0 {
		return domain.ErrInvalidTemplate
	}
	if isVariable(segs[0]) {
		return domain.ErrInvalidTemplate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.root
	for _, seg := range segs {
		if isVariable(seg) {
			if cur.wildcard == nil {
				cur.wildcard = newNode()
				cur.wildcard.varName = varName(seg)
			}
			cur = cur.wildcard
			continue
		}
		child, ok := cur.children[seg]
		if !ok {
			child = newNode()
			cur.children[seg] = child
		}
		cur = child
	}

	if cur.handler != nil {
		return domain.ErrDuplicateHandler
	}
	cur.handler = handler
	return nil
}

// Resolve walks path against the trie, committing to a literal child over
// the wildcard slot at every depth — a greedy walk with no backtracking,
// exactly as the original handler's trie lookup behaves — and returns the
// matching handler plus the Params bound along the way, in left-to-right
// template order.
func (r *Router) Resolve(path string) (domain.Handler, []domain.Param, bool) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.root
	var params []domain.Param
	for _, seg := range segs {
		// An empty segment (a doubled or trailing slash) can never match:
		// no literal child is keyed by it and the wildcard slot won't
		// bind it.
		if seg == "" {
			return nil, nil, false
		}
		if child, ok := n.children[seg]; ok {
			n = child
			continue
		}
		if n.wildcard != nil {
			params = append(params, domain.Param{Name: n.wildcard.varName, Value: seg})
			n = n.wildcard
			continue
		}
		return nil, nil, false
	}

	if n.handler == nil {
		return nil, nil, false
	}
	return n.handler, params, true
}

// splitPath splits on '/' without normalizing: a trailing slash produces an
// empty final segment, which resolution then fails to match.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isVariable(seg string) bool {
	return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) > 2
}

func varName(seg string) string {
	return seg[1 : len(seg)-1]
}
