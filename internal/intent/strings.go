package intent

import (
	"regexp"
	"strings"
	"unicode"
)

var titleSplit = regexp.MustCompile(`[_\s]+`)

// ToTitleCase splits on underscores and whitespace and capitalises each part.
func ToTitleCase(s string) string {
	var parts []string
	for _, p := range titleSplit.Split(s, -1) {
		if p == "" {
			continue
		}
		r := []rune(p)
		parts = append(parts, strings.ToUpper(string(r[:1]))+strings.ToLower(string(r[1:])))
	}
	return strings.Join(parts, " ")
}

// ToPascalCase is ToTitleCase without the spaces: "entry create" -> "EntryCreate".
func ToPascalCase(s string) string {
	return strings.ReplaceAll(ToTitleCase(s), " ", "")
}

// ToSnakeCase splits on case changes, digits and separators:
// "EntryCreate" -> "entry_create", "HTTPServer2" -> "http_server2".
func ToSnakeCase(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	words := splitWords(trimmed)
	if len(words) == 0 {
		return strings.Join(strings.Fields(strings.ToLower(trimmed)), "_")
	}
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_")
}

// ToNativeLabel turns a classifier id such as "entry_create" into its
// display label "Entry Create".
func ToNativeLabel(label string) string {
	return ToTitleCase(strings.ReplaceAll(label, "_", " "))
}

// splitWords finds acronyms, capitalised or lowercase words with trailing
// digits, and bare digit runs. Everything else separates words.
func splitWords(s string) []string {
	r := []rune(s)
	var words []string
	i := 0
	for i < len(r) {
		switch {
		case unicode.IsUpper(r[i]):
			j := i
			for j < len(r) && unicode.IsUpper(r[j]) {
				j++
			}
			run := j - i
			if run >= 2 && j < len(r) && unicode.IsLower(r[j]) {
				if run > 2 {
					// acronym followed by a capitalised word: "HTTPServer"
					words = append(words, string(r[i:j-1]))
					i = j - 1
					continue
				}
				words = append(words, string(r[i:j]))
				i = j
				continue
			}
			if run >= 2 {
				words = append(words, string(r[i:j]))
				i = j
				continue
			}
			k := lowerWordEnd(r, j)
			if k == j {
				words = append(words, string(r[i:j]))
				i = j
				continue
			}
			words = append(words, string(r[i:k]))
			i = k
		case unicode.IsLower(r[i]):
			k := lowerWordEnd(r, i)
			words = append(words, string(r[i:k]))
			i = k
		case unicode.IsDigit(r[i]):
			k := i
			for k < len(r) && unicode.IsDigit(r[k]) {
				k++
			}
			words = append(words, string(r[i:k]))
			i = k
		default:
			i++
		}
	}
	return words
}

// lowerWordEnd returns the end of a lowercase run plus trailing digits
// starting at i, or i when r[i] is not lowercase.
func lowerWordEnd(r []rune, i int) int {
	k := i
	for k < len(r) && unicode.IsLower(r[k]) {
		k++
	}
	if k == i {
		return i
	}
	for k < len(r) && unicode.IsDigit(r[k]) {
		k++
	}
	return k
}
