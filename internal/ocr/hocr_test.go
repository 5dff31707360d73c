package ocr

import (
	"math"
	"testing"
)

const sampleHOCR = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN"
    "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
 <head>
  <title></title>
  <meta http-equiv="Content-Type" content="text/html;charset=utf-8"/>
  <meta name='ocr-system' content='tesseract 5.3.0' />
 </head>
 <body>
  <div class='ocr_page' id='page_1' title='image "page.png"; bbox 0 0 400 300; ppageno 0'>
   <div class='ocr_carea' id='block_1_1' title="bbox 10 10 380 46">
    <p class='ocr_par' id='par_1_1' lang='eng' title="bbox 10 10 380 46">
     <span class='ocr_line' id='line_1_1' title="bbox 10 10 380 22; baseline 0 -2">
      <span class='ocrx_word' id='word_1_1' title='bbox 10 10 60 22; x_wconf 96'>Item</span>
      <span class='ocrx_word' id='word_1_2' title='bbox 180 10 220 22; x_wconf 93'><strong>Qty</strong></span>
     </span>
     <span class='ocr_line' id='line_1_2' title="bbox 10 34 380 46; baseline 0 -2">
      <span class='ocrx_word' id='word_1_3' title='bbox 10 34 70 46; x_wconf 88'>Tom &amp; Jerry&#39;s</span>
      <span class='ocrx_word' id='word_1_4' title='x_wconf 88'>nobox</span>
     </span>
    </p>
   </div>
  </div>
 </body>
</html>`

func TestParseHOCR(t *testing.T) {
	blocks, err := parseHOCR(sampleHOCR)
	if err != nil {
		t.Fatalf("parseHOCR() error = %v", err)
	}

	out := &EngineOutput{Blocks: blocks}
	words := out.Words()
	if len(words) != 3 {
		t.Fatalf("len(words) = %d, want 3: %#v", len(words), words)
	}

	want := []struct {
		text string
		conf float64
		bbox BBox
	}{
		{"Item", 96, NewBBox(10, 10, 60, 22)},
		{"Qty", 93, NewBBox(180, 10, 220, 22)},
		{"Tom & Jerry's", 88, NewBBox(10, 34, 70, 46)},
	}
	for i, w := range want {
		if words[i].Text != w.text {
			t.Errorf("word %d text = %q, want %q", i, words[i].Text, w.text)
		}
		if words[i].Confidence != w.conf {
			t.Errorf("word %d confidence = %v, want %v", i, words[i].Confidence, w.conf)
		}
		if words[i].BBox != w.bbox {
			t.Errorf("word %d bbox = %+v, want %+v", i, words[i].BBox, w.bbox)
		}
	}

	if len(blocks) != 1 || len(blocks[0].Paragraphs) != 1 || len(blocks[0].Paragraphs[0].Lines) != 2 {
		t.Errorf("unexpected hierarchy: %#v", blocks)
	}
}

func TestParseHOCR_Invalid(t *testing.T) {
	if _, err := parseHOCR("definitely not markup"); err == nil {
		t.Error("expected error for invalid hOCR")
	}
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		title string
		want  BBox
		ok    bool
	}{
		{"bbox 1 2 3 4", NewBBox(1, 2, 3, 4), true},
		{"bbox 10 20 30 40; x_wconf 95", NewBBox(10, 20, 30, 40), true},
		{"bbox 1.5 2 3 4.25", NewBBox(1.5, 2, 3, 4.25), true},
		{"x_wconf 95", BBox{}, false},
		{"bbox 1 2 3", BBox{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, ok := parseBBox(tt.title)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseBBox(%q) = %+v, %v; want %+v, %v", tt.title, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseConfidence(t *testing.T) {
	if got := parseConfidence("bbox 1 2 3 4; x_wconf 87"); got != 87 {
		t.Errorf("parseConfidence() = %v, want 87", got)
	}
	if got := parseConfidence("bbox 1 2 3 4"); got != 0 {
		t.Errorf("parseConfidence() without x_wconf = %v, want 0", got)
	}
}

func TestWordValid(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	tests := []struct {
		name string
		word Word
		want bool
	}{
		{"valid", NewWord("ok", 90, NewBBox(0, 0, 10, 10)), true},
		{"blank text", NewWord("  \t", 90, NewBBox(0, 0, 10, 10)), false},
		{"empty text", NewWord("", 90, NewBBox(0, 0, 10, 10)), false},
		{"zero width", NewWord("a", 90, NewBBox(5, 0, 5, 10)), false},
		{"negative height", NewWord("a", 90, NewBBox(0, 10, 5, 2)), false},
		{"nan", NewWord("a", 90, NewBBox(nan, 0, 5, 10)), false},
		{"inf", NewWord("a", 90, NewBBox(0, 0, inf, 10)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.word.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPageResultConfidence(t *testing.T) {
	page := &PageResult{Words: []Word{
		NewWord("a", 90, NewBBox(0, 0, 1, 1)),
		NewWord("b", 70, NewBBox(0, 0, 1, 1)),
		NewWord("", 50, NewBBox(0, 0, 1, 1)),
	}}

	if got := page.Confidence(); got != 70 {
		t.Errorf("Confidence() = %v, want 70", got)
	}
	if got := page.ValidWords(); got != 2 {
		t.Errorf("ValidWords() = %d, want 2", got)
	}
	if got := (&PageResult{}).Confidence(); got != 0 {
		t.Errorf("empty Confidence() = %v, want 0", got)
	}
}
