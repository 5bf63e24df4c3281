package types

import "strings"

// KeyIndex maps a key read back from the target onto the incoming keys it
// stands for. The database decides which rows an IN list matches, so a stored
// key may differ from the incoming one only where the collation ignores case
// or trailing spaces ("abc" finds "ABC ").
type KeyIndex struct {
	exact  map[string]struct{}
	folded map[string][]string
}

// NewKeyIndex indexes the incoming keys of one lookup.
func NewKeyIndex(keys []string) *KeyIndex {
	idx := &KeyIndex{
		exact:  make(map[string]struct{}, len(keys)),
		folded: make(map[string][]string, len(keys)),
	}
	for _, k := range keys {
		if _, dup := idx.exact[k]; dup {
			continue
		}
		idx.exact[k] = struct{}{}
		f := foldKey(k)
		idx.folded[f] = append(idx.folded[f], k)
	}
	return idx
}

// Match returns the incoming keys equal to stored. An exact match wins over
// case- and padding-insensitive ones.
func (x *KeyIndex) Match(stored string) []string {
	if _, ok := x.exact[stored]; ok {
		return []string{stored}
	}
	return x.folded[foldKey(stored)]
}

func foldKey(k string) string {
	return strings.ToLower(strings.TrimRight(k, " "))
}
