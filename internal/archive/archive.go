// Package archive builds the document bundle uploaded to the blob URL: a zip
// holding a content descriptor, an empty page-data entry and the raw document.
// Entry names and the descriptor body are part of the storage backend's
// unarchiving contract and must not change.
package archive

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// idPlaceholder is substituted with the document ID in names and bodies.
const idPlaceholder = "{{UUID}}"

// Entry name templates, in bundle order.
const (
	contentNameTemplate  = idPlaceholder + ".content"
	pageDataNameTemplate = idPlaceholder + ".pagedata"
	documentNameTemplate = idPlaceholder + ".pdf"
)

// descriptorTemplate is the body of the .content entry.
const descriptorTemplate = `{
    "extraMetadata": {
        "DocumentID": "` + idPlaceholder + `"
    },
    "fileType": "pdf",
    "fontName": "",
    "lastOpenedPage": 0,
    "lineHeight": -1,
    "margins": 100,
    "orientation": "portrait",
    "pageCount": 0,
    "textScale": 1,
    "transform": {
    }
}
`

// EntryCount is the number of entries in every bundle.
const EntryCount = 3

// Deflate at NoCompression emits stored blocks of at most storedBlockSize
// bytes, each with storedBlockOverhead bytes of framing.
const (
	storedBlockSize     = 65535
	storedBlockOverhead = 5
)

// zip64Headroom is reserved below the 4 GiB limit for the descriptor, the
// page-data entry, local and central headers and the end record.
const zip64Headroom = 1 << 20

// maxDocumentSize keeps the compressed document, and with it every size and
// offset in the archive, below the Zip64 threshold. The backend does not
// accept Zip64 archives.
const maxDocumentSize int64 = (math.MaxUint32 - zip64Headroom) * storedBlockSize / (storedBlockSize + storedBlockOverhead)

// ErrTooLarge is returned when the document would need Zip64 extensions.
var ErrTooLarge = errors.New("archive: document too large for a non-Zip64 bundle")

// ErrEmptyID is returned when no document ID is supplied.
var ErrEmptyID = errors.New("archive: empty document ID")

// ContentName returns the descriptor entry name for documentID.
func ContentName(documentID string) string {
	return substitute(contentNameTemplate, documentID)
}

// PageDataName returns the page-data entry name for documentID.
func PageDataName(documentID string) string {
	return substitute(pageDataNameTemplate, documentID)
}

// DocumentName returns the raw document entry name for documentID.
func DocumentName(documentID string) string {
	return substitute(documentNameTemplate, documentID)
}

// Descriptor returns the descriptor body for documentID.
func Descriptor(documentID string) string {
	return substitute(descriptorTemplate, documentID)
}

func substitute(template, documentID string) string {
	return strings.ReplaceAll(template, idPlaceholder, documentID)
}

// Build returns the zip-encoded bundle for documentID holding content as the
// document entry. Entries use Deflate at compression level 0 and carry no
// modification time, so the output depends only on documentID and content.
func Build(documentID string, content []byte) ([]byte, error) {
	if documentID == "" {
		return nil, ErrEmptyID
	}

	if int64(len(content)) > maxDocumentSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(content))
	}

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.NoCompression)
	})

	entries := []struct {
		name string
		body []byte
	}{
		{ContentName(documentID), []byte(Descriptor(documentID))},
		{PageDataName(documentID), nil},
		{DocumentName(documentID), content},
	}

	for _, e := range entries {
		if err := writeEntry(zw, e.name, e.body); err != nil {
			zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: finalizing bundle: %w", err)
	}

	return buf.Bytes(), nil
}

// BuildFromFile reads the document at path and builds its bundle.
func BuildFromFile(documentID, path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: reading %s: %w", path, err)
	}

	return Build(documentID, content)
}

func writeEntry(zw *zip.Writer, name string, body []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("archive: creating entry %s: %w", name, err)
	}

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("archive: writing entry %s: %w", name, err)
	}

	return nil
}
