package utils

import (
	"fmt"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"strings"
	"unicode/utf8"
)

var titleColor = color.New(color.FgHiCyan, color.Bold)

// Pluralize prefixes the humanized count, "1,204 versions".
func Pluralize(s string, count int64) string {
	if count == 1 {
		return fmt.Sprintf("1 %s", s)
	}

	lower := strings.ToLower(s)

	// watches, boxes, buses
	for _, suffix := range []string{"ch", "sh", "s", "x"} {
		if strings.HasSuffix(lower, suffix) {
			s += "e"
			break
		}
	}

	return fmt.Sprintf("%s %ss", humanize.Comma(count), s)
}

// PrintFormattedTitle underlines title to its display width, project paths
// often hold non-ASCII names.
func PrintFormattedTitle(title string) {
	titleColor.Println(title)
	fmt.Println(strings.Repeat("=", utf8.RuneCountInString(title)))
}
