package constants

import "strings"

// PDFMediaType is the only content type accepted for analysis.
const PDFMediaType = "application/pdf"

// UploadField is the multipart form field carrying the document.
const UploadField = "pdf"

// MaxUploadBytesDefault caps a single upload (10 MiB).
const MaxUploadBytesDefault int64 = 10 << 20

// ProvenanceChars is how much of the extracted text is echoed back as rawText.
const ProvenanceChars = 500

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// NormalizeMediaType lowercases a Content-Type value and strips any parameters.
func NormalizeMediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsPDFMediaType reports whether ct names a PDF.
func IsPDFMediaType(ct string) bool {
	return NormalizeMediaType(ct) == PDFMediaType
}

// HasPDFMagic reports whether b starts (after leading whitespace) with the PDF header.
func HasPDFMagic(b []byte) bool {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\r' || b[0] == '\n') {
		b = b[1:]
	}
	return len(b) >= len(pdfMagic) && string(b[:len(pdfMagic)]) == string(pdfMagic)
}
