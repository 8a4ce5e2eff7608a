// internal/expr/refs.go
package expr

import "sort"

// ReferencedKeys walks the full tree collecting every variable reference.
// Used for reference-integrity checks and for building the visibility
// dependency graph. A nil tree yields an empty set.
func ReferencedKeys(n *Node) map[string]struct{} {
	keys := make(map[string]struct{})
	collectKeys(n, keys)
	return keys
}

func collectKeys(n *Node, keys map[string]struct{}) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindVariable:
		keys[n.Key] = struct{}{}
	case KindOperator:
		for _, c := range n.Children {
			collectKeys(c, keys)
		}
	}
}

// ReferencedKeysText parses condition text and returns its variable
// references in sorted order. Malformed expressions fail with an explicit
// error rather than returning a partial key set.
func ReferencedKeysText(text string) ([]string, error) {
	node, err := Parse(text)
	if err != nil {
		return nil, err
	}
	set := ReferencedKeys(node)
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ResolvesAgainst reports every referenced key missing from the known-key
// set, sorted. Empty result means the expression is reference-complete.
func ResolvesAgainst(n *Node, known map[string]struct{}) []string {
	var missing []string
	for key := range ReferencedKeys(n) {
		if _, ok := known[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	if len(missing) == 0 {
		return nil
	}
	return missing
}
