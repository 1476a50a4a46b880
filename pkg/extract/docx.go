package extract

import (
	"context"
	"encoding/xml"
	"strings"
)

// Docx 提取 Word 文档正文段落.
type Docx struct{}

// NewDocx 创建 docx 提取器.
func NewDocx() *Docx { return &Docx{} }

// SupportedFormats 实现 Extractor.
func (*Docx) SupportedFormats() []string { return []string{".docx"} }

// Extract 返回正文中顶层段落的文本，段落之间以 '\n' 连接.
// 表格、文本框等嵌套结构中的段落不计入.
func (*Docx) Extract(ctx context.Context, blob []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	zr, err := openPackage(blob)
	if err != nil {
		return "", err
	}

	data, err := readPart(zr, mainPart(zr, "word/document.xml"))
	if err != nil {
		return "", err
	}

	paragraphs, err := docxParagraphs(data)
	if err != nil {
		return "", err
	}

	return strings.Join(paragraphs, "\n"), nil
}

// docxParagraphs 收集 w:body 直接子段落的文本.
// 只读取段落下的 w:r 以及 w:hyperlink 中的 w:r，修订(w:ins)、内容控件(w:sdt)与域(w:fldSimple)中的文字不计入.
func docxParagraphs(data []byte) ([]string, error) {
	var (
		stack      elementStack
		paragraphs []string
		cur        strings.Builder
		depth      int  // 当前所处段落的嵌套层数，0 表示不在顶层段落中
		inRun      bool // 位于顶层段落中可计入的 w:r 内
		inText     bool // 位于可计入 w:r 的 w:t 内
	)

	err := walkTokens(data, func(tok xml.Token) error {
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local

			switch {
			case name == "p" && depth == 0 && stack.parent() == "body":
				depth = 1

				cur.Reset()
			case name == "p" && depth > 0:
				depth++
			case name == "r" && depth == 1:
				inRun = stack.parent() == "p" || (stack.parent() == "hyperlink" && stack.at(1) == "p")
			case depth == 1 && inRun && stack.parent() == "r":
				switch name {
				case "t":
					inText = true
				case "tab", "ptab":
					cur.WriteByte('\t')
				case "br":
					if breakType(t) == "" || breakType(t) == "textWrapping" {
						cur.WriteByte('\n')
					}
				case "cr":
					cur.WriteByte('\n')
				case "noBreakHyphen":
					cur.WriteByte('-')
				}
			}

			stack.push(name)
		case xml.EndElement:
			stack.pop()

			switch {
			case t.Name.Local == "p" && depth == 1:
				paragraphs = append(paragraphs, cur.String())
				depth = 0
			case t.Name.Local == "p" && depth > 1:
				depth--
			case t.Name.Local == "r" && depth == 1:
				inRun = false
			case t.Name.Local == "t":
				inText = false
			}
		case xml.CharData:
			if inText && depth == 1 {
				cur.Write(t)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return paragraphs, nil
}

// breakType 返回 w:br 的 w:type，分页与分栏符不产生文本.
func breakType(el xml.StartElement) string {
	for _, a := range el.Attr {
		if a.Name.Local == "type" {
			return a.Value
		}
	}

	return ""
}
