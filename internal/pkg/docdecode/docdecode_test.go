package docdecode

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeText(t *testing.T) {
	d := New(0)

	text, err := d.Decode([]byte("\xEF\xBB\xBF  Reset the compressor relay.\n"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "Reset the compressor relay.", text)

	text, err = d.Decode([]byte("# Manual"), "text/markdown")
	require.NoError(t, err)
	assert.Equal(t, "# Manual", text)
}

func TestDecodeRejects(t *testing.T) {
	d := New(0)

	_, err := d.Decode(nil, "text/plain")
	require.ErrorIs(t, err, ErrEmptyFile)

	_, err = d.Decode([]byte("ab\x00\x01cd"), "text/plain")
	require.ErrorIs(t, err, ErrNotText)

	_, err = d.Decode([]byte("png"), "image/png")
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = d.Decode([]byte("not a pdf"), mediaTypePDF)
	require.Error(t, err)

	_, err = d.Decode([]byte("not a zip"), mediaTypeDOCX)
	require.ErrorContains(t, err, "open docx failed")
}

func TestDecodeLatin1TextUsesReplacementChars(t *testing.T) {
	text, err := New(0).Decode([]byte("caf\xe9 cr\xe8me"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "caf\uFFFD cr\uFFFDme", text)
}

func TestDecodeClipsLongText(t *testing.T) {
	text, err := New(5).Decode([]byte("wörld peace"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "wörld", text)
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Fridge manual</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Step 1:</w:t></w:r><w:r><w:tab/><w:t>unplug</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	text, err := New(0).Decode(data, mediaTypeDOCX)
	require.NoError(t, err)
	assert.Equal(t, "Fridge manual\nStep 1:\tunplug", text)
}

func TestExtractDOCXWithoutDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = ExtractDOCX(buf.Bytes(), 0)
	require.ErrorIs(t, err, errNoDocumentPart)
}

func TestExtractDOCUTF16(t *testing.T) {
	var data []byte
	data = append(data, 0xD0, 0xCF, 0x11, 0xE0, 0x00, 0x00)
	for _, u := range utf16.Encode([]rune("Reset the relay")) {
		data = append(data, byte(u), byte(u>>8))
	}
	data = append(data, 0x00, 0x00, 0x07, 0x00)

	text, err := New(0).Decode(data, mediaTypeDOC)
	require.NoError(t, err)
	assert.Equal(t, "Reset the relay", text)
}

func TestExtractDOCSingleByte(t *testing.T) {
	data := append([]byte{0x00, 0x01, 0x02}, []byte("Hello world\x00\x00ab\x01")...)

	text, err := ExtractDOC(data)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestExtractDOCWithoutText(t *testing.T) {
	_, err := ExtractDOC([]byte{0x00, 0x01, 0x02, 0x03})
	require.ErrorIs(t, err, errNoText)
}

func TestRecoverDecodeTurnsPanicIntoError(t *testing.T) {
	decode := func() (err error) {
		defer recoverDecode(&err, mediaTypePDF)
		panic("loading {2 0}: found int64 instead of objdef")
	}

	err := decode()
	require.ErrorContains(t, err, "decode application/pdf failed: loading {2 0}")
}

func TestDecodeMalformedPDFReturnsError(t *testing.T) {
	data := buildPDF(t, true)

	var err error
	require.NotPanics(t, func() {
		_, err = New(0).Decode(data, mediaTypePDF)
	})
	require.Error(t, err)
}

func TestExtractDOCXStopsAtTextBudget(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = io.WriteString(w, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	require.NoError(t, err)
	for i := 0; i < 100000; i++ {
		_, err = io.WriteString(w, "<w:p><w:r><w:t>aaaaaaaaaa</w:t></w:r></w:p>")
		require.NoError(t, err)
	}
	_, err = io.WriteString(w, "</w:body></w:document>")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	text, err := ExtractDOCX(buf.Bytes(), 400)
	require.NoError(t, err)
	assert.Less(t, len(text), 500)

	text, err = New(100).Decode(buf.Bytes(), mediaTypeDOCX)
	require.NoError(t, err)
	assert.Len(t, []rune(text), 100)
}

func TestExtractDOCXRejectsInflatedPart(t *testing.T) {
	saved := maxExpandedBytes
	maxExpandedBytes = 1 << 20
	t.Cleanup(func() { maxExpandedBytes = saved })

	data := buildDOCX(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>`+
		strings.Repeat("a", 4<<20)+`</w:t></w:r></w:p></w:body></w:document>`)
	require.Less(t, len(data), 64<<10)

	_, err := New(200000).Decode(data, mediaTypeDOCX)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestCapReader(t *testing.T) {
	got, err := io.ReadAll(&capReader{r: strings.NewReader("abcd"), left: 4})
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(got))

	_, err = io.ReadAll(&capReader{r: strings.NewReader("abcde"), left: 4})
	require.ErrorIs(t, err, ErrTooLarge)
}

// buildPDF writes a one-page PDF with a correct xref table. With
// misplaceXref the entry for the page tree points into the MediaBox array,
// where the reader finds plain integers instead of an object header.
func buildPDF(t *testing.T, misplaceXref bool) []byte {
	t.Helper()
	content := "BT /F1 12 Tf 72 720 Td (Reset the relay) Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	if misplaceXref {
		at := bytes.Index(buf.Bytes(), []byte("612 792"))
		require.Positive(t, at)
		offsets[1] = at
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
