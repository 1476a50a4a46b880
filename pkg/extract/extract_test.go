package extract_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/carevault/pkg/extract"
)

type part struct {
	name, body string
}

func buildZip(t *testing.T, parts ...part) []byte {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func docxParagraph(runs ...string) string {
	var b strings.Builder
	b.WriteString("<w:p><w:pPr><w:tabs><w:tab w:val=\"left\" w:pos=\"720\"/></w:tabs></w:pPr>")

	for _, r := range runs {
		fmt.Fprintf(&b, "<w:r><w:t xml:space=\"preserve\">%s</w:t></w:r>", r)
	}

	b.WriteString("</w:p>")

	return b.String()
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()

	return buildZip(t,
		part{"[Content_Types].xml", `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		part{"_rels/.rels", `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`},
		part{"word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document ` + wordNS + `><w:body>` + body + `<w:sectPr/></w:body></w:document>`},
	)
}

func TestDocxParagraphsJoinedByNewline(t *testing.T) {
	blob := buildDocx(t, docxParagraph("Diagnosis: stable")+docxParagraph("Follow-up ", "in 2 weeks"))

	text, err := extract.Default().Extract(context.Background(), blob, ".docx")
	require.NoError(t, err)
	assert.Equal(t, "Diagnosis: stable\nFollow-up in 2 weeks", text)
}

func TestDocxEmptyParagraphsAndSpecialRuns(t *testing.T) {
	body := docxParagraph("first") +
		"<w:p/>" +
		`<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>` +
		`<w:p><w:hyperlink><w:r><w:t>link</w:t></w:r></w:hyperlink></w:p>`

	text, err := extract.NewDocx().Extract(context.Background(), buildDocx(t, body))
	require.NoError(t, err)
	assert.Equal(t, "first\n\na\tb\nc\nlink", text)
}

func TestDocxSkipsTablesAndTextBoxes(t *testing.T) {
	body := docxParagraph("before") +
		`<w:tbl><w:tr><w:tc>` + docxParagraph("cell") + `</w:tc></w:tr></w:tbl>` +
		`<w:p><w:r><w:t>outer</w:t><w:drawing><w:txbxContent>` + docxParagraph("boxed") + `</w:txbxContent></w:drawing></w:r></w:p>` +
		docxParagraph("after")

	text, err := extract.NewDocx().Extract(context.Background(), buildDocx(t, body))
	require.NoError(t, err)
	assert.Equal(t, "before\nouter\nafter", text)
}

func TestDocxReadsOnlyDirectRunsAndHyperlinks(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:t>keep</w:t><w:ptab/><w:t>tab</w:t></w:r>` +
		`<w:ins><w:r><w:t>inserted</w:t></w:r></w:ins>` +
		`<w:sdt><w:sdtContent><w:r><w:t>control</w:t></w:r></w:sdtContent></w:sdt>` +
		`<w:fldSimple><w:r><w:t>field</w:t></w:r></w:fldSimple>` +
		`<w:hyperlink><w:r><w:t> link</w:t></w:r></w:hyperlink>` +
		`<w:r><w:br w:type="page"/><w:t>!</w:t></w:r>` +
		`</w:p>`

	text, err := extract.NewDocx().Extract(context.Background(), buildDocx(t, body))
	require.NoError(t, err)
	assert.Equal(t, "keep\ttab link!", text)
}

func TestDocxWithoutPackageRels(t *testing.T) {
	blob := buildZip(t, part{"word/document.xml",
		`<w:document ` + wordNS + `><w:body>` + docxParagraph("only") + `</w:body></w:document>`})

	text, err := extract.NewDocx().Extract(context.Background(), blob)
	require.NoError(t, err)
	assert.Equal(t, "only", text)
}

const (
	presNS  = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	relType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
)

func shape(paragraphs ...string) string {
	var b strings.Builder
	b.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Title"/></p:nvSpPr><p:txBody><a:bodyPr/>`)

	for _, p := range paragraphs {
		fmt.Fprintf(&b, "<a:p><a:r><a:t>%s</a:t></a:r></a:p>", p)
	}

	b.WriteString(`</p:txBody></p:sp>`)

	return b.String()
}

func slide(shapes ...string) string {
	return `<?xml version="1.0"?><p:sld ` + presNS + `><p:cSld><p:spTree><p:nvGrpSpPr/><p:grpSpPr/>` +
		strings.Join(shapes, "") + `</p:spTree></p:cSld></p:sld>`
}

// buildPptx 生成 pptx；slides 的放映顺序与部件文件名顺序故意不一致.
func buildPptx(t *testing.T, slides ...string) []byte {
	t.Helper()

	var ids, rels strings.Builder

	parts := []part{}

	for i, s := range slides {
		// 第 i 张幻灯片写入 slide{n-i}.xml
		file := fmt.Sprintf("slide%d.xml", len(slides)-i)
		target := "slides/" + file

		if i == 0 {
			target = "/ppt/slides/" + file
		}

		fmt.Fprintf(&ids, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, 10+i)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="%s" Target="%s"/>`, 10+i, relType, target)

		parts = append(parts, part{"ppt/slides/" + file, s})
	}

	parts = append(parts,
		part{"ppt/presentation.xml", `<?xml version="1.0"?><p:presentation ` + presNS + `><p:sldIdLst>` + ids.String() + `</p:sldIdLst></p:presentation>`},
		part{"ppt/_rels/presentation.xml.rels", `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + rels.String() + `</Relationships>`},
	)

	return buildZip(t, parts...)
}

func TestPptxShapesInSlideOrder(t *testing.T) {
	blob := buildPptx(t,
		slide(shape("Visit summary"), shape("BP 120/80", "HR 72")),
		slide(shape("Plan")),
	)

	text, err := extract.Default().Extract(context.Background(), blob, "PPTX")
	require.NoError(t, err)
	assert.Equal(t, "Visit summary\nBP 120/80\nHR 72\nPlan\n", text)
}

func TestPptxEmptyShapesAndLineBreaks(t *testing.T) {
	noText := `<p:sp><p:nvSpPr><p:cNvPr id="3" name="Rect"/></p:nvSpPr><p:spPr/></p:sp>`
	group := `<p:grpSp><p:nvGrpSpPr/>` + shape("grouped") + `</p:grpSp>`
	brk := `<p:sp><p:txBody><a:p><a:r><a:t>line1</a:t></a:r><a:br/><a:r><a:t>line2</a:t></a:r>` +
		`<a:fld id="{1}" type="slidenum"><a:t>3</a:t></a:fld></a:p></p:txBody></p:sp>`

	text, err := extract.NewPptx().Extract(context.Background(), buildPptx(t, slide(noText, group, brk)))
	require.NoError(t, err)
	assert.Equal(t, "\nline1\vline23\n", text)
}

func TestExtractIsDeterministic(t *testing.T) {
	blob := buildPptx(t, slide(shape("a", "b")), slide(shape("c")))

	first, err := extract.Default().Extract(context.Background(), blob, ".pptx")
	require.NoError(t, err)

	for range 5 {
		again, err := extract.Default().Extract(context.Background(), blob, ".pptx")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	for _, ext := range []string{".pdf", ".doc", "", ".txt", ".ppt"} {
		_, err := extract.Default().Extract(context.Background(), []byte("irrelevant"), ext)
		assert.ErrorIs(t, err, extract.ErrUnsupportedFormat, ext)
		assert.False(t, extract.Default().Supports(ext))
	}
}

func TestInvalidDocument(t *testing.T) {
	_, err := extract.Default().Extract(context.Background(), []byte("not a zip"), ".docx")
	assert.ErrorIs(t, err, extract.ErrInvalidDocument)

	_, err = extract.Default().Extract(context.Background(), buildZip(t, part{"other.xml", "<x/>"}), ".pptx")
	assert.ErrorIs(t, err, extract.ErrInvalidDocument)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extract.NewDocx().Extract(ctx, buildDocx(t, docxParagraph("x")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeAndFormats(t *testing.T) {
	assert.Equal(t, ".docx", extract.Normalize("DOCX"))
	assert.Equal(t, ".pptx", extract.Normalize(" .PPTX "))
	assert.Equal(t, ".docx", extract.ExtOf("Visit.Notes.DOCX"))
	assert.Equal(t, "", extract.ExtOf("README"))
	assert.Equal(t, []string{".docx", ".pptx"}, extract.Default().Formats())
}
