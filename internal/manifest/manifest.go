package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Divider separates the header and every image entry
var Divider = strings.Repeat("-", 80)

// TimeFormat is used for the extraction timestamp in the text manifest
const TimeFormat = "2006-01-02 15:04:05"

// Record describes one extracted image
type Record struct {
	Page     int    `yaml:"page"`
	FileName string `yaml:"image"`
	Caption  string `yaml:"caption"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Size     int64  `yaml:"size"` // bytes
	Path     string `yaml:"path"`
}

// Header summarises the run
type Header struct {
	Source          string    `yaml:"source"`
	ExtractedAt     time.Time `yaml:"extracted_at"`
	Pages           int       `yaml:"pages"`
	ImagesFound     int       `yaml:"images_found"`
	ImagesCaptioned int       `yaml:"images_captioned"`
	ImagesExtracted int       `yaml:"images_extracted"`
}

// Manifest is the complete report of one run
type Manifest struct {
	Header `yaml:",inline"`
	Images []Record `yaml:"images"`
}

// Format renders the human-readable manifest
func Format(w io.Writer, m *Manifest) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Source: %s\n", m.Source)
	fmt.Fprintf(&b, "Extracted: %s\n", m.ExtractedAt.Format(TimeFormat))
	fmt.Fprintf(&b, "Pages: %d\n", m.Pages)
	fmt.Fprintf(&b, "Images found: %d\n", m.ImagesFound)
	fmt.Fprintf(&b, "Images with captions: %d\n", m.ImagesCaptioned)
	fmt.Fprintf(&b, "Images extracted: %d\n", m.ImagesExtracted)
	fmt.Fprintln(&b, Divider)

	for _, r := range m.Images {
		fmt.Fprintf(&b, "Page: %d\n", r.Page)
		fmt.Fprintf(&b, "Image: %s\n", r.FileName)
		fmt.Fprintf(&b, "Caption: %s\n", r.Caption)
		fmt.Fprintf(&b, "Dimensions: %dx%d\n", r.Width, r.Height)
		fmt.Fprintf(&b, "File size: %d bytes\n", r.Size)
		fmt.Fprintf(&b, "Location: %s\n", r.Path)
		fmt.Fprintln(&b, Divider)
	}

	_, err := w.Write(b.Bytes())
	return err
}

// Write replaces the text manifest at path in one step
func Write(path string, m *Manifest) error {
	var b bytes.Buffer
	if err := Format(&b, m); err != nil {
		return err
	}
	return writeAtomic(path, b.Bytes())
}

// writeAtomic writes to a temp file next to path and renames it over path,
// so readers never observe a partial manifest
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
