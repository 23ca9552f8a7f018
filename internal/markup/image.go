package markup

import (
	"strings"

	"golang.org/x/net/html"
)

// FirstImageURL returns the src of the first <img> element in s that has a
// non-empty source, or "" when there is none.
func FirstImageURL(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "img" || !hasAttr {
				continue
			}

			if src := imageSource(z); src != "" {
				return src
			}
		default:
		}
	}
}

// imageSource scans the attributes of the current tag for src.
func imageSource(z *html.Tokenizer) string {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "src" {
			return strings.TrimSpace(string(val))
		}

		if !more {
			return ""
		}
	}
}
