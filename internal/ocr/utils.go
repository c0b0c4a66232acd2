package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF        = regexp.MustCompile(`\r\n?`)
	reLineSpace   = regexp.MustCompile(`[ \t]+`)
	reCurrencyGap = regexp.MustCompile(`([$€£¥])\s+(\d)`)
)

// CleanText collapses noisy whitespace inside lines and drops blank lines,
// keeping the line structure the field extractors key off. A currency symbol
// split from its amount ("$ 12.34") is rejoined, a frequent OCR artifact on
// thermal paper.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reCurrencyGap.ReplaceAllString(s, "$1$2")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		ln = strings.TrimSpace(reLineSpace.ReplaceAllString(ln, " "))
		if ln != "" {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n")
}
