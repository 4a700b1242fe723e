// Package extract pulls plain text out of uploaded PDF files.
package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Error reports a file that could not be parsed as a PDF.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Text returns all page text of the PDF at path, pages joined by a blank
// line in page order. A parseable PDF with no extractable text yields an
// empty string and no error; the caller decides what that means.
func Text(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", &Error{Path: path, Err: err}
	}
	defer file.Close()

	totalPages := reader.NumPage()
	pages := make([]string, 0, totalPages)
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages rather than failing the document.
			continue
		}
		text = normalizePage(text)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n\n"), nil
}

func normalizePage(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	return strings.Join(strings.Fields(text), " ")
}
