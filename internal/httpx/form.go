package httpx

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// EncodeForm encodes fields as application/x-www-form-urlencoded text.
//
// Nested maps use bracketed keys (a[b]=c). List items never get a numeric
// index because the API expects a repeated bare key: {"tags": ["a","b"]}
// becomes "tags=a&tags=b". Values are escaped as given. Nil values are
// skipped. Keys are emitted in sorted order.
func EncodeForm(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	var pairs []string
	for _, key := range sortedKeys(fields) {
		pairs = appendPairs(pairs, key, fields[key])
	}
	return strings.Join(pairs, "&")
}

// FormValues returns EncodeForm's result parsed back into url.Values.
func FormValues(fields map[string]any) url.Values {
	values, err := url.ParseQuery(EncodeForm(fields))
	if err != nil {
		return url.Values{}
	}
	return values
}

func appendPairs(pairs []string, key string, value any) []string {
	switch v := value.(type) {
	case nil:
		return pairs
	case string:
		return append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(v))
	case []string:
		for _, item := range v {
			pairs = appendPairs(pairs, key, item)
		}
		return pairs
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pairs = appendPairs(pairs, key+"["+k+"]", v[k])
		}
		return pairs
	case map[string]any:
		for _, k := range sortedKeys(v) {
			pairs = appendPairs(pairs, key+"["+k+"]", v[k])
		}
		return pairs
	case url.Values:
		return appendPairs(pairs, key, map[string][]string(v))
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(string(rv.Bytes())))
		}
		for i := 0; i < rv.Len(); i++ {
			pairs = appendPairs(pairs, key, rv.Index(i).Interface())
		}
		return pairs
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			pairs = appendPairs(pairs, key+"["+k.String()+"]", rv.MapIndex(k).Interface())
		}
		return pairs
	case reflect.Pointer:
		if rv.IsNil() {
			return pairs
		}
		return appendPairs(pairs, key, rv.Elem().Interface())
	}
	return append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(scalarString(value)))
}

// scalarString formats scalars the way the API's form parser expects;
// booleans become 1 and 0.
func scalarString(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "1"
		}
		return "0"
	case fmt.Stringer:
		return v.String()
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
