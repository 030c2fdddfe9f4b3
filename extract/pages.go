package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageFunc receives each page's text in order. Returning an error stops the read.
type PageFunc func(page int, text string) error

// PageSource streams the pages of a file.
type PageSource interface {
	Pages(path string, fn PageFunc) error
}

var extensions = map[string]PageSource{
	".pdf": PDF{},
	".txt": Text{},
	".md":  Text{},
}

// Supported reports whether path has an extension a reader exists for.
func Supported(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Auto dispatches to a reader by file extension.
type Auto struct{}

func (Auto) Pages(path string, fn PageFunc) error {
	src, ok := extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	return src.Pages(path, fn)
}

// Text reads a UTF-8 text file, splitting pages on form feeds.
type Text struct{}

func (Text) Pages(path string, fn PageFunc) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for i, page := range strings.Split(string(data), "\f") {
		if err := fn(i+1, page); err != nil {
			return err
		}
	}
	return nil
}

// PDF reads the plain text of each page of a PDF document.
// Pages without content are skipped.
type PDF struct{}

func (PDF) Pages(path string, fn PageFunc) (err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrCorruptFile, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptFile, path, err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return fmt.Errorf("%w: %s page %d: %v", ErrCorruptFile, path, i, err)
		}
		if err := fn(i, text); err != nil {
			return err
		}
	}
	return nil
}
