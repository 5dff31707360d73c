package ocr

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	bboxPattern  = regexp.MustCompile(`bbox\s+(-?\d+(?:\.\d+)?)\s+(-?\d+(?:\.\d+)?)\s+(-?\d+(?:\.\d+)?)\s+(-?\d+(?:\.\d+)?)`)
	wconfPattern = regexp.MustCompile(`x_wconf\s+(\d+(?:\.\d+)?)`)
)

// hocrDocument is the subset of the hOCR XHTML tree produced by tesseract
type hocrDocument struct {
	XMLName xml.Name     `xml:"html"`
	Pages   []hocrPageEl `xml:"body>div"`
}

// hocrPageEl represents an ocr_page div
type hocrPageEl struct {
	Class string       `xml:"class,attr"`
	Title string       `xml:"title,attr"`
	Areas []hocrAreaEl `xml:"div"`
}

// hocrAreaEl represents an ocr_carea div
type hocrAreaEl struct {
	Class string      `xml:"class,attr"`
	Pars  []hocrParEl `xml:"p"`
}

// hocrParEl represents an ocr_par paragraph
type hocrParEl struct {
	Class string       `xml:"class,attr"`
	Lines []hocrLineEl `xml:"span"`
}

// hocrLineEl represents an ocr_line (or ocr_caption, ocr_header...) span
type hocrLineEl struct {
	Class string       `xml:"class,attr"`
	Title string       `xml:"title,attr"`
	Words []hocrWordEl `xml:"span"`
}

// hocrWordEl represents an ocrx_word span. Tesseract may wrap the text in
// <strong> or <em>, which lands in Styled.
type hocrWordEl struct {
	Class  string         `xml:"class,attr"`
	Title  string         `xml:"title,attr"`
	Text   string         `xml:",chardata"`
	Styled []hocrInlineEl `xml:",any"`
}

type hocrInlineEl struct {
	Text   string         `xml:",chardata"`
	Styled []hocrInlineEl `xml:",any"`
}

func (e hocrInlineEl) text() string {
	var sb strings.Builder
	sb.WriteString(e.Text)
	for _, child := range e.Styled {
		sb.WriteString(child.text())
	}
	return sb.String()
}

func (w hocrWordEl) text() string {
	var sb strings.Builder
	sb.WriteString(w.Text)
	for _, child := range w.Styled {
		sb.WriteString(child.text())
	}
	return strings.TrimSpace(sb.String())
}

// parseHOCR converts hOCR markup into the engine block hierarchy.
// Words without a parsable bbox are dropped.
func parseHOCR(hocr string) ([]Block, error) {
	decoder := xml.NewDecoder(strings.NewReader(hocr))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	var doc hocrDocument
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hOCR: %w", err)
	}

	var blocks []Block
	for _, page := range doc.Pages {
		for _, area := range page.Areas {
			block := Block{}
			for _, par := range area.Pars {
				paragraph := Paragraph{}
				for _, hl := range par.Lines {
					line := Line{}
					for _, hw := range hl.Words {
						if hw.Class != "" && hw.Class != "ocrx_word" {
							continue
						}
						bbox, ok := parseBBox(hw.Title)
						if !ok {
							continue
						}
						line.Words = append(line.Words, NewWord(hw.text(), parseConfidence(hw.Title), bbox))
					}
					paragraph.Lines = append(paragraph.Lines, line)
				}
				block.Paragraphs = append(block.Paragraphs, paragraph)
			}
			blocks = append(blocks, block)
		}
	}

	return blocks, nil
}

// parseBBox extracts "bbox x0 y0 x1 y1" from an hOCR title attribute
func parseBBox(title string) (BBox, bool) {
	matches := bboxPattern.FindStringSubmatch(title)
	if len(matches) != 5 {
		return BBox{}, false
	}

	var coords [4]float64
	for i := range coords {
		v, err := strconv.ParseFloat(matches[i+1], 64)
		if err != nil {
			return BBox{}, false
		}
		coords[i] = v
	}
	return NewBBox(coords[0], coords[1], coords[2], coords[3]), true
}

// parseConfidence extracts "x_wconf N" from an hOCR title attribute
func parseConfidence(title string) float64 {
	matches := wconfPattern.FindStringSubmatch(title)
	if len(matches) != 2 {
		return 0
	}

	conf, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0
	}
	return conf
}
