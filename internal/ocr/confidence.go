package ocr

import (
	"strconv"
	"strings"
)

// tsvWord is one recognized word from tesseract's TSV output. Confidence is
// rescaled from tesseract's 0..100 to 0..1 at this boundary so nothing above
// it ever sees the raw scale.
type tsvWord struct {
	block, par, line int
	text             string
	conf             float64
}

// parseTSVWords reads tesseract TSV output. Columns are
// level page block par line word left top width height conf text;
// only word rows (conf >= 0, non-empty text) are kept. Structural rows carry
// a conf of -1 and are skipped along with the header.
func parseTSVWords(out string) []tsvWord {
	var words []tsvWord
	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || ln == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		block, _ := strconv.Atoi(cols[2])
		par, _ := strconv.Atoi(cols[3])
		line, _ := strconv.Atoi(cols[4])
		words = append(words, tsvWord{
			block: block,
			par:   par,
			line:  line,
			text:  text,
			conf:  conf / 100.0,
		})
	}
	return words
}

// assembleText rebuilds line-oriented text from word rows, starting a new
// line whenever the (block, paragraph, line) triple changes.
func assembleText(words []tsvWord) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			prev := words[i-1]
			if w.block != prev.block || w.par != prev.par || w.line != prev.line {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.text)
	}
	return b.String()
}

// meanWordConfidence averages the strictly positive word confidences.
// Zero-confidence words are usually binarization garbage and would drag the
// mean toward zero on otherwise clean scans.
func meanWordConfidence(words []tsvWord) float64 {
	var sum float64
	var n int
	for _, w := range words {
		if w.conf > 0 {
			sum += w.conf
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
