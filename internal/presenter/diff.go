package presenter

import (
	"net/url"
	"strings"
)

// Mark annotates a fragment that differs from the previous URL.
type Mark int

const (
	MarkNone Mark = iota
	// MarkChanged is a path segment that differs.
	MarkChanged
	// MarkAdded is a query parameter only the current URL has.
	MarkAdded
	// MarkRemoved is a query parameter only the previous URL had.
	MarkRemoved
	// MarkUpdated is a query parameter whose value changed.
	MarkUpdated
)

func (m Mark) String() string {
	switch m {
	case MarkChanged:
		return "changed"
	case MarkAdded:
		return "added"
	case MarkRemoved:
		return "removed"
	case MarkUpdated:
		return "updated"
	default:
		return "none"
	}
}

func (m Mark) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Fragment is a run of rendered URL text with one mark.
type Fragment struct {
	Text string `json:"text"`
	Mark Mark   `json:"mark"`
}

// Rendering is a URL split into marked fragments.
type Rendering []Fragment

// String is the rendering without marks.
func (r Rendering) String() string {
	var b strings.Builder
	for _, f := range r {
		b.WriteString(f.Text)
	}
	return b.String()
}

// Render joins the fragments after passing each through style.
func (r Rendering) Render(style func(Fragment) string) string {
	var b strings.Builder
	for _, f := range r {
		b.WriteString(style(f))
	}
	return b.String()
}

// HasMarks reports whether any fragment differs from the previous URL.
func (r Rendering) HasMarks() bool {
	for _, f := range r {
		if f.Mark != MarkNone {
			return true
		}
	}
	return false
}

// add appends text, merging it into the last fragment when the marks match.
func (r Rendering) add(text string, mark Mark) Rendering {
	if text == "" && mark == MarkNone {
		return r
	}
	if n := len(r); n > 0 && mark == MarkNone && r[n-1].Mark == MarkNone {
		r[n-1].Text += text
		return r
	}
	return append(r, Fragment{Text: text, Mark: mark})
}

type params struct {
	keys   []string
	values map[string]string
}

func (p params) get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

type components struct {
	protocol string
	host     string
	pathname string
	params   params
	hash     string
}

var defaultPorts = map[string]string{"http": "80", "https": "443", "ws": "80", "wss": "443"}

// parseComponents splits an absolute URL the way a browser's URL parser exposes it.
func parseComponents(raw string) (components, bool) {
	u, err := url.Parse(raw)
	lenient := false
	if err != nil {
		// Browsers keep a stray '%' literally where url.Parse refuses it.
		fixed, changed := escapeStrayPercents(raw)
		if !changed {
			return components{}, false
		}
		if u, err = url.Parse(fixed); err != nil {
			return components{}, false
		}
		lenient = true
	}
	if u.Scheme == "" {
		return components{}, false
	}

	host := strings.ToLower(u.Host)
	if port := u.Port(); port != "" && defaultPorts[strings.ToLower(u.Scheme)] == port {
		host = strings.TrimSuffix(host, ":"+port)
	}

	pathname := u.EscapedPath()
	if u.Opaque != "" {
		pathname = u.Opaque
	} else if pathname == "" && host != "" {
		pathname = "/"
	}

	var hash string
	if frag := u.EscapedFragment(); frag != "" {
		hash = "#" + frag
	}

	rawQuery := u.RawQuery
	if lenient {
		pathname, rawQuery, hash = splitRaw(raw, host != "")
	}

	return components{
		protocol: strings.ToLower(u.Scheme) + ":",
		host:     host,
		pathname: pathname,
		params:   parseParams(rawQuery),
		hash:     hash,
	}, true
}

// escapeStrayPercents encodes every '%' not followed by two hex digits.
func escapeStrayPercents(raw string) (string, bool) {
	var b strings.Builder
	changed := false
	for i := 0; i < len(raw); i++ {
		if raw[i] == '%' && (i+2 >= len(raw) || !isHex(raw[i+1]) || !isHex(raw[i+2])) {
			b.WriteString("%25")
			changed = true
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String(), changed
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// splitRaw takes path, query and fragment straight from the input text, as
// written, for URLs that only parse after escaping.
func splitRaw(raw string, hasHost bool) (pathname, rawQuery, hash string) {
	rest := raw
	if i := strings.Index(rest, "#"); i >= 0 {
		if i+1 < len(rest) {
			hash = rest[i:]
		}
		rest = rest[:i]
	}
	rest, rawQuery, _ = strings.Cut(rest, "?")
	_, rest, _ = strings.Cut(rest, ":")
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[i:]
		} else {
			rest = ""
		}
	}
	pathname = rest
	if pathname == "" && hasHost {
		pathname = "/"
	}
	return pathname, rawQuery, hash
}

// parseParams keeps first-occurrence key order; a repeated key keeps its last value.
func parseParams(rawQuery string) params {
	p := params{values: make(map[string]string)}
	if rawQuery == "" {
		return p
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		value = unescape(value)
		if _, seen := p.values[key]; !seen {
			p.keys = append(p.keys, key)
		}
		p.values[key] = value
	}
	return p
}

func unescape(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return strings.ReplaceAll(s, "+", " ")
}

// FormatURLWithDiff renders current with the parts that differ from previous
// marked. An empty previous means there is nothing to compare against.
// Cross-host pairs and unparseable input come back unmodified.
func FormatURLWithDiff(current, previous string) Rendering {
	plain := Rendering{}.add(current, MarkNone)

	cur, ok := parseComponents(current)
	if !ok || previous == "" {
		return plain
	}
	prev, ok := parseComponents(previous)
	if !ok || cur.host != prev.host {
		return plain
	}

	r := Rendering{}.add(cur.protocol+"//"+cur.host, MarkNone)
	r = diffPath(r, cur.pathname, prev.pathname)
	r = diffQuery(r, cur.params, prev.params)
	if cur.hash != "" {
		r = r.add(cur.hash, MarkNone)
	}
	return r
}

func diffPath(r Rendering, currentPath, previousPath string) Rendering {
	if currentPath == previousPath {
		return r.add(currentPath, MarkNone)
	}

	currentSegments := strings.Split(currentPath, "/")
	previousSegments := strings.Split(previousPath, "/")
	n := max(len(currentSegments), len(previousSegments))

	for i := 0; i < n; i++ {
		currentSeg := segmentAt(currentSegments, i)
		previousSeg := segmentAt(previousSegments, i)
		if i > 0 {
			r = r.add("/", MarkNone)
		}
		if currentSeg != previousSeg {
			r = r.add(currentSeg, MarkChanged)
		} else {
			r = r.add(currentSeg, MarkNone)
		}
	}
	return r
}

func segmentAt(segments []string, i int) string {
	if i < len(segments) {
		return segments[i]
	}
	return ""
}

func diffQuery(r Rendering, current, previous params) Rendering {
	if len(current.keys) == 0 && len(previous.keys) == 0 {
		return r
	}

	keys := append([]string(nil), current.keys...)
	for _, key := range previous.keys {
		if _, ok := current.get(key); !ok {
			keys = append(keys, key)
		}
	}

	r = r.add("?", MarkNone)
	for i, key := range keys {
		if i > 0 {
			r = r.add("&", MarkNone)
		}
		currentValue, inCurrent := current.get(key)
		previousValue, inPrevious := previous.get(key)
		switch {
		case inCurrent && !inPrevious:
			r = r.add(key+"="+currentValue, MarkAdded)
		case !inCurrent && inPrevious:
			r = r.add(key+"="+previousValue, MarkRemoved)
		case currentValue != previousValue:
			r = r.add(key+"="+currentValue, MarkUpdated)
		default:
			r = r.add(key+"="+currentValue, MarkNone)
		}
	}
	return r
}
