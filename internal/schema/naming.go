package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// displayName splits a camel-case model name into words: BlogPost -> Blog Post.
func displayName(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func pluralName(display string) string {
	return display + "s"
}

// lowerName is the snake_case form of a display name: Blog Post -> blog_post.
func lowerName(display string) string {
	return strings.ReplaceAll(lower.String(display), " ", "_")
}

// urlName is the url slug of a plural name: Blog Posts -> blog-posts.
func urlName(plural string) string {
	return strings.ReplaceAll(lower.String(plural), " ", "-")
}
