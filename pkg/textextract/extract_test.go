package textextract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorix/backend/internal/apperr"
)

func TestExtractPlainText(t *testing.T) {
	text, err := Extract([]byte("hello\nworld\n"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", text)
}

func TestExtractMarkdownByExtension(t *testing.T) {
	text, err := Extract([]byte("# Title\n\nSome *content*."), ".md")
	require.NoError(t, err)
	assert.Contains(t, text, "# Title")
}

func TestExtractInvalidUTF8IsReplacedNotFatal(t *testing.T) {
	data := append([]byte("valid prefix "), 0xff, 0xfe, 0xfd)
	text, err := Extract(data, "text/plain")
	require.NoError(t, err)
	assert.Contains(t, text, "valid prefix")
}

func TestExtractStripsUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("content")...)
	text, err := Extract(data, "txt")
	require.NoError(t, err)
	assert.Equal(t, "content", text)
}

func TestExtractHTML(t *testing.T) {
	html := `<html><head><style>p{color:red}</style></head>
	<body><nav>menu</nav><p>First paragraph.</p><p>Second paragraph.</p>
	<script>alert(1)</script><footer>legal</footer></body></html>`

	text, err := Extract([]byte(html), "text/html")
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	assert.NotContains(t, text, "alert(1)")
	assert.NotContains(t, text, "menu")
	assert.NotContains(t, text, "legal")
	assert.NotContains(t, text, "color:red")
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>Quarterly report</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Revenue grew.</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	text, err := Extract(buf.Bytes(), "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	require.NoError(t, err)
	assert.Contains(t, text, "Quarterly report")
	assert.Contains(t, text, "Revenue grew.")
}

func TestExtractDOCXWithoutDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("other.xml")
	w.Write([]byte("<x/>"))
	require.NoError(t, zw.Close())

	_, err := Extract(buf.Bytes(), ".docx")
	require.Error(t, err)
	assert.Equal(t, apperr.KindCorruptDocument, apperr.KindOf(err))
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := Extract([]byte("GIF89a"), "image/gif")
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnsupportedFormat, apperr.KindOf(err))
}

func TestExtractCorruptPDF(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4 garbage"), "application/pdf")
	require.Error(t, err)
	assert.Equal(t, apperr.KindCorruptDocument, apperr.KindOf(err))
}

func TestSupportedExtension(t *testing.T) {
	assert.True(t, SupportedExtension("report.PDF"))
	assert.True(t, SupportedExtension("notes.md"))
	assert.True(t, SupportedExtension("page.htm"))
	assert.False(t, SupportedExtension("archive.zip"))
	assert.False(t, SupportedExtension("noext"))
}
