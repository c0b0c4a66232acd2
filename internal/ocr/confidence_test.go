package ocr

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func tsvFixture(rows ...string) string {
	header := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext"
	return header + "\n" + strings.Join(rows, "\n") + "\n"
}

func wordRow(block, par, line int, conf float64, text string) string {
	return fmt.Sprintf("5\t1\t%d\t%d\t%d\t1\t10\t10\t50\t12\t%.6f\t%s",
		block, par, line, conf, text)
}

func structuralRow(level int) string {
	return fmt.Sprintf("%d\t1\t1\t0\t0\t0\t0\t0\t600\t800\t-1\t", level)
}

func TestParseTSVWords(t *testing.T) {
	out := tsvFixture(
		structuralRow(1),
		structuralRow(2),
		wordRow(1, 1, 1, 96.5, "WALMART"),
		wordRow(1, 1, 1, 91.0, "SUPERCENTER"),
		wordRow(1, 1, 2, 88.25, "TOTAL"),
	)

	words := parseTSVWords(out)

	if len(words) != 3 {
		t.Fatalf("parsed %d words, want 3", len(words))
	}
	if words[0].text != "WALMART" {
		t.Errorf("first word = %q, want WALMART", words[0].text)
	}
	if math.Abs(words[0].conf-0.965) > 1e-9 {
		t.Errorf("first conf = %v, want 0.965", words[0].conf)
	}
	if words[2].line != 2 {
		t.Errorf("third word line = %d, want 2", words[2].line)
	}
}

func TestParseTSVWordsSkipsJunk(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want int
	}{
		{"empty input", "", 0},
		{"header only", tsvFixture(), 0},
		{"structural rows only", tsvFixture(structuralRow(1), structuralRow(4)), 0},
		{"negative confidence", tsvFixture(wordRow(1, 1, 1, -1, "ghost")), 0},
		{"blank text", tsvFixture(wordRow(1, 1, 1, 90, " ")), 0},
		{"short row", tsvFixture("5\t1\t1"), 0},
		{"unparsable confidence", tsvFixture("5\t1\t1\t1\t1\t1\t0\t0\t1\t1\tnope\tword"), 0},
		{"one good word", tsvFixture(wordRow(1, 1, 1, 75, "ok")), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTSVWords(tt.out); len(got) != tt.want {
				t.Errorf("parsed %d words, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAssembleText(t *testing.T) {
	words := parseTSVWords(tsvFixture(
		wordRow(1, 1, 1, 95, "WALMART"),
		wordRow(1, 1, 1, 94, "SUPERCENTER"),
		wordRow(1, 1, 2, 90, "TOTAL:"),
		wordRow(1, 1, 2, 92, "$23.47"),
		wordRow(2, 1, 1, 85, "THANK"),
		wordRow(2, 1, 1, 85, "YOU"),
	))

	got := assembleText(words)
	want := "WALMART SUPERCENTER\nTOTAL: $23.47\nTHANK YOU"
	if got != want {
		t.Errorf("assembled %q, want %q", got, want)
	}
}

func TestMeanWordConfidence(t *testing.T) {
	tests := []struct {
		name  string
		words []tsvWord
		want  float64
	}{
		{"no words", nil, 0},
		{"single word", []tsvWord{{conf: 0.8}}, 0.8},
		{"mean of positives", []tsvWord{{conf: 0.9}, {conf: 0.7}}, 0.8},
		{"zero confidences excluded", []tsvWord{{conf: 0.9}, {conf: 0}, {conf: 0.7}}, 0.8},
		{"all zero", []tsvWord{{conf: 0}, {conf: 0}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := meanWordConfidence(tt.words); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("mean = %v, want %v", got, tt.want)
			}
		})
	}
}
