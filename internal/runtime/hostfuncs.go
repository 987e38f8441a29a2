package runtime

import (
	"context"
	"os"
	"sync"

	"github.com/risor-io/risor/object"

	"github.com/jward/morpheus/internal/query"
	"github.com/jward/morpheus/internal/syntax"
)

// sourceStore maps the root node of every tree a script parsed back to its
// tree, so node_text and query can recover source and language from any
// node.
type sourceStore struct {
	mu    sync.RWMutex
	trees map[*syntax.Node]*syntax.Tree
}

func newSourceStore() *sourceStore {
	return &sourceStore{trees: make(map[*syntax.Node]*syntax.Tree)}
}

func (s *sourceStore) store(tree *syntax.Tree) {
	s.mu.Lock()
	s.trees[tree.RootNode()] = tree
	s.mu.Unlock()
}

func rootOf(node *syntax.Node) *syntax.Node {
	for node.Parent() != nil {
		node = node.Parent()
	}
	return node
}

func (s *sourceStore) treeForNode(node *syntax.Node) (*syntax.Tree, bool) {
	s.mu.RLock()
	tree, ok := s.trees[rootOf(node)]
	s.mu.RUnlock()
	return tree, ok
}

func (s *sourceStore) releaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for root, tree := range s.trees {
		if err := tree.Release(); err != nil {
			log.Warningf("release script tree: %s", err)
		}
		delete(s.trees, root)
	}
}

// makeParseFn creates the "parse" host function.
//
// parse(path) → Tree
func makeParseFn(p Parser, ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse", 1, len(args))
		}
		pathStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("parse: path must be a string, got %s", args[0].Type())
		}
		src, err := os.ReadFile(pathStr.Value())
		if err != nil {
			return object.Errorf("parse: reading %s: %v", pathStr.Value(), err)
		}
		return parseSource(p, ss, src)
	})
}

// makeParseSrcFn creates "parse_src", which parses source text directly.
//
// parse_src(source) → Tree
func makeParseSrcFn(p Parser, ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("parse_src", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_src", 1, len(args))
		}
		srcStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("parse_src: source must be a string, got %s", args[0].Type())
		}
		return parseSource(p, ss, []byte(srcStr.Value()))
	})
}

func parseSource(p Parser, ss *sourceStore, src []byte) object.Object {
	tree, err := p.Parse(src)
	if err != nil {
		return object.Errorf("parse: %v", err)
	}
	ss.store(tree)
	proxy, err := object.NewProxy(tree)
	if err != nil {
		return object.Errorf("parse: proxy error: %v", err)
	}
	return proxy
}

func nodeArg(name string, arg object.Object) (*syntax.Node, *object.Error) {
	proxy, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected proxy (Node), got %s", name, arg.Type())
	}
	node, ok := proxy.Interface().(*syntax.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *syntax.Node, got %T", name, proxy.Interface())
	}
	return node, nil
}

// makeNodeTextFn creates the "node_text" host function.
//
// node_text(node) → string
func makeNodeTextFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		tree, found := ss.treeForNode(node)
		if !found {
			return object.Errorf("node_text: no source found for node's tree")
		}
		return object.NewString(node.Content(tree.Source()))
	})
}

// makeQueryFn creates the "query" host function.
//
// query(pattern, node) → [{capture: Node}]
func makeQueryFn(ss *sourceStore) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		patternStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("query: pattern must be a string, got %s", args[0].Type())
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		tree, found := ss.treeForNode(node)
		if !found {
			return object.Errorf("query: no source found for node's tree")
		}

		q, err := query.New(patternStr.Value(), tree.Language())
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}

		results := []object.Object{}
		for _, match := range q.Matches(node, tree.Source()) {
			matchMap := make(map[string]object.Object, len(match.Captures))
			for _, c := range match.Captures {
				nodeP, err := object.NewProxy(c.Node)
				if err != nil {
					return object.Errorf("query: proxy error for capture %q: %v", c.Name, err)
				}
				matchMap[c.Name] = nodeP
			}
			results = append(results, object.NewMap(matchMap))
		}
		return object.NewList(results)
	})
}

// makeNodeChildFn wraps ChildByFieldName so a missing child is Risor nil
// rather than a proxied Go nil pointer.
//
// node_child(node, fieldName) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		fieldStr, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("node_child: field must be a string, got %s", args[1].Type())
		}
		child := node.ChildByFieldName(fieldStr.Value())
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: proxy error: %v", err)
		}
		return p
	})
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct{}

func (l *logObject) Info(msg string)  { log.Info(msg) }
func (l *logObject) Warn(msg string)  { log.Warning(msg) }
func (l *logObject) Error(msg string) { log.Error(msg) }
