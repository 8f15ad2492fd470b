// Package textextract pulls plain text out of uploaded documents.
// Extraction is best-effort: unreadable PDF pages are skipped and
// encoding anomalies are replaced rather than failing the document.
package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"github.com/mentorix/backend/internal/apperr"
)

// SupportedMimeTypes is the accepted upload set; checked at intake
// time so unsupported files are rejected before a worker touches them.
var SupportedMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":      true,
	"text/markdown":   true,
	"text/x-markdown": true,
	"text/html":       true,
}

var supportedExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".txt": true, ".md": true, ".html": true, ".htm": true,
}

func SupportedExtension(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Supported reports whether an upload can be extracted, by MIME type or,
// when the client sent a generic type, by file extension.
func Supported(mimeType, name string) bool {
	if SupportedMimeTypes[strings.ToLower(strings.TrimSpace(mimeType))] {
		return true
	}
	return SupportedExtension(name)
}

// Extract returns the plain text of data. mimeType may be a MIME type
// or a file extension. It is a pure function over the bytes.
func Extract(data []byte, mimeType string) (text string, err error) {
	// Extraction libraries parse hostile input; a panic must surface
	// as a corrupt-document error, not kill the worker.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = apperr.New(apperr.KindCorruptDocument, "document extraction failed: %v", r)
		}
	}()

	switch normalize(mimeType) {
	case "pdf":
		return extractPDF(data)
	case "docx":
		return extractDOCX(data)
	case "txt", "md":
		return sanitizeText(data), nil
	case "html":
		return extractHTML(data)
	default:
		return "", apperr.New(apperr.KindUnsupportedFormat, "unsupported file type: %s", mimeType)
	}
}

func normalize(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case ".pdf", "pdf", "application/pdf":
		return "pdf"
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case ".txt", "txt", "text/plain":
		return "txt"
	case ".md", "md", "text/markdown", "text/x-markdown":
		return "md"
	case ".html", ".htm", "html", "htm", "text/html":
		return "html"
	default:
		return ""
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperr.Wrap(apperr.KindCorruptDocument, err, "open PDF")
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // best effort: skip unreadable pages
		}
		if strings.TrimSpace(text) != "" {
			buf.WriteString(text)
			buf.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperr.Wrap(apperr.KindCorruptDocument, err, "open DOCX")
	}

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", apperr.Wrap(apperr.KindCorruptDocument, err, "open document.xml")
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", apperr.Wrap(apperr.KindCorruptDocument, err, "read document.xml")
		}
		return stripXMLTags(sanitizeText(content)), nil
	}
	return "", apperr.New(apperr.KindCorruptDocument, "DOCX has no word/document.xml")
}

func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", apperr.Wrap(apperr.KindCorruptDocument, err, "parse HTML")
	}
	doc.Find("script, style, nav, header, footer").Remove()

	var parts []string
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(parts, "\n"), nil
}

// sanitizeText decodes best-effort: invalid UTF-8 sequences become
// replacement runes instead of failing the document.
func sanitizeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM
	if utf8.Valid(data) {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(data), string(utf8.RuneError)))
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}

// Describe reports the format label used in error messages.
func Describe(mimeType string) string {
	if n := normalize(mimeType); n != "" {
		return n
	}
	return fmt.Sprintf("unknown (%s)", mimeType)
}
