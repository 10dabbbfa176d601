package uri

import "strings"

// QueryValues splits the query component into key/value pairs
// ("a=1&b=2"). Keys without '=' map to the empty string. Percent escapes
// are not decoded, consistent with the rest of the parser.
func (u *URI) QueryValues() map[string]string {
	if u.Query == "" {
		return nil
	}
	values := make(map[string]string)
	for _, pair := range strings.Split(u.Query, "&") {
		if pair == "" {
			continue
		}
		if i := strings.IndexByte(pair, '='); i >= 0 {
			values[pair[:i]] = pair[i+1:]
		} else {
			values[pair] = ""
		}
	}
	return values
}
