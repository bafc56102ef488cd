package presenter

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// markup renders marks inline so expectations read like the rendered panel.
func markup(r Rendering) string {
	return r.Render(func(f Fragment) string {
		switch f.Mark {
		case MarkChanged:
			return "[~" + f.Text + "]"
		case MarkAdded:
			return "[+" + f.Text + "]"
		case MarkRemoved:
			return "[-" + f.Text + "]"
		case MarkUpdated:
			return "[*" + f.Text + "]"
		default:
			return f.Text
		}
	})
}

func TestFormatURLWithDiff(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		previous string
		want     string
	}{
		{
			name:     "path segment changed",
			current:  "https://app.test/users/42/profile",
			previous: "https://app.test/users/42/settings",
			want:     "https://app.test/users/42/[~profile]",
		},
		{
			name:     "query added and removed",
			current:  "https://app.test/?a=1&b=2",
			previous: "https://app.test/?a=1&c=3",
			want:     "https://app.test/?a=1&[+b=2]&[-c=3]",
		},
		{
			name:     "query updated",
			current:  "https://app.test/search?q=go&page=2",
			previous: "https://app.test/search?q=go&page=1",
			want:     "https://app.test/search?q=go&[*page=2]",
		},
		{
			name:     "no previous",
			current:  "https://app.test/a?x=1",
			previous: "",
			want:     "https://app.test/a?x=1",
		},
		{
			name:     "different host",
			current:  "https://other.test/users/1?a=1",
			previous: "https://app.test/users/2?a=2",
			want:     "https://other.test/users/1?a=1",
		},
		{
			name:     "unparseable current",
			current:  "not a url",
			previous: "https://app.test/",
			want:     "not a url",
		},
		{
			name:     "unparseable previous",
			current:  "https://app.test/a",
			previous: "::::",
			want:     "https://app.test/a",
		},
		{
			name:     "longer current path",
			current:  "https://app.test/a/b/c",
			previous: "https://app.test/a",
			want:     "https://app.test/a/[~b]/[~c]",
		},
		{
			name:     "shorter current path marks an empty segment",
			current:  "https://app.test/a",
			previous: "https://app.test/a/b",
			want:     "https://app.test/a/[~]",
		},
		{
			name:     "hash shown but not diffed",
			current:  "https://app.test/a#two",
			previous: "https://app.test/a#one",
			want:     "https://app.test/a#two",
		},
		{
			name:     "no params on either side omits the query",
			current:  "https://app.test/a?",
			previous: "https://app.test/b",
			want:     "https://app.test/[~a]",
		},
		{
			name:     "duplicate key keeps last value",
			current:  "https://app.test/?a=1&a=3",
			previous: "https://app.test/?a=3",
			want:     "https://app.test/?a=3",
		},
		{
			name:     "root path equals bare host",
			current:  "https://app.test",
			previous: "https://app.test/?x=1",
			want:     "https://app.test/?[-x=1]",
		},
		{
			name:     "default port matches bare host",
			current:  "https://APP.test:443/a",
			previous: "https://app.test/b",
			want:     "https://app.test/[~a]",
		},
		{
			name:     "decoded values",
			current:  "https://app.test/?q=hello+world&r=%2Fx",
			previous: "https://app.test/?q=hello",
			want:     "https://app.test/?[*q=hello world]&[+r=/x]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, markup(FormatURLWithDiff(tt.current, tt.previous)))
		})
	}
}

func TestPathDiffMarksOnlyTheFourthSegment(t *testing.T) {
	r := FormatURLWithDiff("https://app.test/users/42/profile", "https://app.test/users/42/settings")

	var changed []string
	for _, f := range r {
		if f.Mark != MarkNone {
			assert.Equal(t, MarkChanged, f.Mark)
			changed = append(changed, f.Text)
		}
	}
	assert.Equal(t, []string{"profile"}, changed)
}

func TestQueryKeySetIsUnionOfBothSides(t *testing.T) {
	pairs := [][2]string{
		{"https://app.test/?a=1&b=2", "https://app.test/?a=1&c=3"},
		{"https://app.test/?x=1", "https://app.test/?y=2&z=3"},
		{"https://app.test/", "https://app.test/?only=prev"},
		{"https://app.test/?k=v&k2=v2", "https://app.test/"},
	}
	for _, pair := range pairs {
		r := FormatURLWithDiff(pair[0], pair[1])
		rendered := r.String()
		_, query, _ := strings.Cut(rendered, "?")

		var gotKeys []string
		for _, kv := range strings.Split(query, "&") {
			key, _, _ := strings.Cut(kv, "=")
			gotKeys = append(gotKeys, key)
		}

		want := map[string]bool{}
		for _, u := range pair {
			c, ok := parseComponents(u)
			assert.True(t, ok)
			for _, k := range c.params.keys {
				want[k] = true
			}
		}
		var wantKeys []string
		for k := range want {
			wantKeys = append(wantKeys, k)
		}
		sort.Strings(gotKeys)
		sort.Strings(wantKeys)
		assert.Equal(t, wantKeys, gotKeys, "pair %v", pair)
	}
}

func TestCrossHostNeverMarks(t *testing.T) {
	r := FormatURLWithDiff("https://b.test/x/y?p=1", "https://a.test/q?p=2&z=1")
	assert.False(t, r.HasMarks())
	assert.Equal(t, "https://b.test/x/y?p=1", r.String())
}

func TestMarkText(t *testing.T) {
	text, err := MarkAdded.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "added", string(text))
	assert.Equal(t, "none", Mark(99).String())
}

func TestStrayPercentStillDiffs(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		previous string
		want     string
	}{
		{
			name:     "stray percent in path",
			current:  "https://a.test/%zz/b?x=1",
			previous: "https://a.test/%zz/c?x=2",
			want:     "https://a.test/%zz/[~b]?[*x=1]",
		},
		{
			name:     "stray percent in query and fragment",
			current:  "https://a.test/p?q=100%&r=1#50%",
			previous: "https://a.test/p?q=100%",
			want:     "https://a.test/p?q=100%&[+r=1]#50%",
		},
		{
			name:     "trailing percent with no path",
			current:  "https://a.test?a=%",
			previous: "https://a.test/?a=1",
			want:     "https://a.test/?[*a=%]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, markup(FormatURLWithDiff(tt.current, tt.previous)))
		})
	}
}

func TestEscapeStrayPercents(t *testing.T) {
	fixed, changed := escapeStrayPercents("/a%2Fb%zz%4")
	assert.True(t, changed)
	assert.Equal(t, "/a%2Fb%25zz%254", fixed)

	_, changed = escapeStrayPercents("/a%2Fb")
	assert.False(t, changed)
}
