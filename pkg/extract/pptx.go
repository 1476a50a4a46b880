package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

// Pptx 提取 PowerPoint 幻灯片中形状的文本.
type Pptx struct{}

// NewPptx 创建 pptx 提取器.
func NewPptx() *Pptx { return &Pptx{} }

// SupportedFormats 实现 Extractor.
func (*Pptx) SupportedFormats() []string { return []string{".pptx"} }

// Extract 按放映顺序遍历幻灯片，对每个顶层文本形状输出其文本并追加 '\n'.
// 形状内段落以 '\n' 连接，段内换行（a:br）输出为 '\v'.
func (*Pptx) Extract(ctx context.Context, blob []byte) (string, error) {
	zr, err := openPackage(blob)
	if err != nil {
		return "", err
	}

	slides, err := slideParts(zr)
	if err != nil {
		return "", err
	}

	var out strings.Builder

	for _, part := range slides {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		data, err := readPart(zr, part)
		if err != nil {
			return "", err
		}

		shapes, err := slideShapeTexts(data)
		if err != nil {
			return "", fmt.Errorf("%s: %w", part, err)
		}

		for _, s := range shapes {
			out.WriteString(s)
			out.WriteByte('\n')
		}
	}

	return out.String(), nil
}

type presentation struct {
	SlideIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

// slideParts 依据 presentation.xml 的 sldIdLst 给出幻灯片部件路径.
func slideParts(zr *zip.Reader) ([]string, error) {
	main := mainPart(zr, "ppt/presentation.xml")

	data, err := readPart(zr, main)
	if err != nil {
		return nil, err
	}

	var pres presentation
	if err := xml.Unmarshal(data, &pres); err != nil {
		return nil, fmt.Errorf("%w: presentation: %v", ErrInvalidDocument, err)
	}

	rels, err := readRels(zr, main)
	if err != nil {
		return nil, err
	}

	parts := make([]string, 0, len(pres.SlideIDs))

	for _, id := range pres.SlideIDs {
		target, ok := rels[id.RID]
		if !ok {
			return nil, fmt.Errorf("%w: slide relationship %q not found", ErrInvalidDocument, id.RID)
		}

		parts = append(parts, target)
	}

	return parts, nil
}

// slideShapeTexts 返回 p:spTree 下每个顶层 p:sp 的文本，没有文本框的形状为空串.
func slideShapeTexts(data []byte) ([]string, error) {
	var (
		stack      elementStack
		shapes     []string
		paragraphs []string
		para       strings.Builder
		inShape    bool
		shapeDepth int // p:sp 在栈中的深度
		inPara     bool
		inText     bool
	)

	err := walkTokens(data, func(tok xml.Token) error {
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local

			switch {
			case !inShape && name == "sp" && stack.parent() == "spTree" && stack.grandparent() == "cSld":
				inShape = true
				shapeDepth = len(stack)
				paragraphs = paragraphs[:0]
			case inShape && name == "p" && stack.parent() == "txBody":
				inPara = true

				para.Reset()
			case inPara && name == "t" && (stack.parent() == "r" || stack.parent() == "fld"):
				inText = true
			case inPara && name == "br" && stack.parent() == "p":
				para.WriteByte('\v')
			}

			stack.push(name)
		case xml.EndElement:
			stack.pop()

			name := t.Name.Local

			switch {
			case inText && name == "t":
				inText = false
			case inPara && name == "p" && stack.parent() == "txBody":
				paragraphs = append(paragraphs, para.String())
				inPara = false
			case inShape && name == "sp" && len(stack) == shapeDepth:
				shapes = append(shapes, strings.Join(paragraphs, "\n"))
				inShape = false
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return shapes, nil
}
