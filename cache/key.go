package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Key is the normalized cache key components: table, the query
// parameters that select a response (fields/filter/sort/page/page
// size), and the configured vary-by values (e.g. the caller's user id
// or API key) so two callers with different access never share a cached response.
type Key struct {
	Table  string
	Query  map[string]string
	VaryBy map[string]string
}

// String renders a stable, collision-resistant key. crypto/sha256 is
// used directly here (as with auth.HashAPIKey) because this is a pure
// fixed-length digest of already-serialized bytes, not a general
// caching concern any pack library specializes in.
func (k Key) String() string {
	sum := sha256.Sum256(k.canonicalBytes())
	return "crudgate:cache:" + k.Table + ":" + hex.EncodeToString(sum[:])
}

func (k Key) canonicalBytes() []byte {
	type pair struct {
		K string `json:"k"`
		V string `json:"v"`
	}
	flatten := func(m map[string]string) []pair {
		out := make([]pair, 0, len(m))
		for key, val := range m {
			out = append(out, pair{K: key, V: val})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].K < out[j].K })
		return out
	}

	payload := struct {
		Table  string `json:"table"`
		Query  []pair `json:"query"`
		VaryBy []pair `json:"vary_by"`
	}{
		Table:  k.Table,
		Query:  flatten(k.Query),
		VaryBy: flatten(k.VaryBy),
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func encodeEntry(e Entry) ([]byte, error) { return json.Marshal(e) }

func decodeEntry(raw []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(raw, &e)
	return e, err
}
