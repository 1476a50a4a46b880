package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// maxPartBytes 单个 XML 部件解压后的上限.
const maxPartBytes = 64 << 20

// openPackage 打开 OOXML 容器.
func openPackage(blob []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	return zr, nil
}

// readPart 读取容器内的部件，名称不含前导斜杠.
func readPart(zr *zip.Reader, name string) ([]byte, error) {
	name = strings.TrimPrefix(name, "/")

	for _, f := range zr.File {
		if f.Name != name {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidDocument, name, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(io.LimitReader(rc, maxPartBytes+1))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidDocument, name, err)
		}

		if len(data) > maxPartBytes {
			return nil, fmt.Errorf("%w: part %s too large", ErrInvalidDocument, name)
		}

		return data, nil
	}

	return nil, fmt.Errorf("%w: missing part %s", ErrInvalidDocument, name)
}

// relationship 对应 .rels 中的一条 Relationship.
type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type relationships struct {
	Items []relationship `xml:"Relationship"`
}

// readRels 读取 base 部件的关系表，返回 Id 到部件路径的映射.
func readRels(zr *zip.Reader, base string) (map[string]string, error) {
	items, err := readRelsTyped(zr, base)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(items))
	for _, r := range items {
		out[r.ID] = r.Target
	}

	return out, nil
}

// elementStack 记录解析过程中已打开元素的本地名.
type elementStack []string

func (s *elementStack) push(name string) { *s = append(*s, name) }

func (s *elementStack) pop() {
	if len(*s) > 0 {
		*s = (*s)[:len(*s)-1]
	}
}

// at 返回栈顶往下第 n 个元素，at(0) 等同于 parent.
func (s elementStack) at(n int) string {
	if n < 0 || n >= len(s) {
		return ""
	}

	return s[len(s)-1-n]
}

// parent 返回当前栈顶，即新元素的父元素.
func (s elementStack) parent() string {
	if len(s) == 0 {
		return ""
	}

	return s[len(s)-1]
}

// grandparent 返回栈顶下一层.
func (s elementStack) grandparent() string {
	if len(s) < 2 {
		return ""
	}

	return s[len(s)-2]
}

// walkTokens 逐个遍历 XML token，直到 EOF.
func walkTokens(data []byte, fn func(tok xml.Token) error) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}

		if err := fn(tok); err != nil {
			return err
		}
	}
}

// officeDocumentRel 包级关系中主文档的关系类型后缀.
const officeDocumentRel = "/officeDocument"

// mainPart 从包级关系中找到主文档部件，关系缺失时使用 fallback.
func mainPart(zr *zip.Reader, fallback string) string {
	rels, err := readRelsTyped(zr, "")
	if err != nil {
		return fallback
	}

	for _, r := range rels {
		if strings.HasSuffix(r.Type, officeDocumentRel) {
			return r.Target
		}
	}

	return fallback
}

// readRelsTyped 与 readRels 相同，但保留关系类型.
func readRelsTyped(zr *zip.Reader, base string) ([]relationship, error) {
	dir, file := path.Split(base)

	data, err := readPart(zr, dir+"_rels/"+file+".rels")
	if err != nil {
		return nil, err
	}

	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("%w: %s rels: %v", ErrInvalidDocument, base, err)
	}

	for i := range rels.Items {
		rels.Items[i].Target = resolveTarget(dir, rels.Items[i].Target)
	}

	return rels.Items, nil
}

func resolveTarget(dir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}

	return path.Join(dir, target)
}
