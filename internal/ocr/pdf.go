package ocr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
)

// renderPDFPage rasterizes the first page of a PDF into a JPEG data URL
// suitable for a vision model.
func renderPDFPage(pdf []byte) (string, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	img, err := doc.Image(0)
	if err != nil {
		return "", fmt.Errorf("failed to render PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
