package migrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrBookmarkFormat = errors.New("unrecognized bookmark encoding")

// ParseBookmarks decodes the legacy users.bookmarks field into novel ids.
// Accepted encodings:
//
//	[5, 9]                   plain array
//	{"bookmarks": [5, 9]}    wrapped array
//	{"list": [5, 9]}         wrapped array
//	{"5": true, "9": 1}      object used as a set, truthy values only
//
// Elements may be numbers or numeric strings. Ids come back de-duplicated in
// input order; object sets are returned in ascending order.
func ParseBookmarks(raw string) ([]int64, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBookmarkFormat, err)
		}
		return parseElements(elems)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBookmarkFormat, err)
		}
		for _, key := range []string{"bookmarks", "list"} {
			if v, ok := obj[key]; ok {
				var elems []json.RawMessage
				if err := json.Unmarshal(v, &elems); err != nil {
					return nil, fmt.Errorf("%w: %q is not an array", ErrBookmarkFormat, key)
				}
				return parseElements(elems)
			}
		}
		return parseSet(obj)
	}
	return nil, fmt.Errorf("%w: %.20q", ErrBookmarkFormat, raw)
}

func parseElements(elems []json.RawMessage) ([]int64, error) {
	out := make([]int64, 0, len(elems))
	seen := make(map[int64]struct{}, len(elems))
	for _, e := range elems {
		id, err := parseID(e)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func parseSet(obj map[string]json.RawMessage) ([]int64, error) {
	out := make([]int64, 0, len(obj))
	for k, v := range obj {
		id, err := strconv.ParseInt(strings.TrimSpace(k), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q is not an id", ErrBookmarkFormat, k)
		}
		if truthy(v) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func parseID(e json.RawMessage) (int64, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(e))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBookmarkFormat, err)
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("%w: element %s is not an id", ErrBookmarkFormat, e)
	}
	id, err := n.Int64()
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: element %s is not an id", ErrBookmarkFormat, e)
	}
	return id, nil
}

func truthy(v json.RawMessage) bool {
	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return false
	}
	switch t := x.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0" && !strings.EqualFold(t, "false")
	case nil:
		return false
	}
	return true
}
