package sitemap

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// xmlFile streams one XML document into a temporary file in the target
// directory. finish renames it into place, so a reader never sees a
// half-written sitemap.
type xmlFile struct {
	tmp  *os.File
	buf  *bufio.Writer
	gz   *gzip.Writer
	enc  *xml.Encoder
	root xml.StartElement
	size int64
}

func createXMLFile(dir string, compress, indent bool, root xml.StartElement) (*xmlFile, error) {
	tmp, err := os.CreateTemp(dir, ".sitemap-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	f := &xmlFile{tmp: tmp, root: root}
	f.buf = bufio.NewWriter(tmp)
	var w io.Writer = f.buf
	if compress {
		f.gz, err = gzip.NewWriterLevel(f.buf, gzip.BestCompression)
		if err != nil {
			f.discard()
			return nil, err
		}
		w = f.gz
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		f.discard()
		return nil, err
	}
	f.enc = xml.NewEncoder(w)
	if indent {
		f.enc.Indent("", "  ")
	}
	if err := f.enc.EncodeToken(root); err != nil {
		f.discard()
		return nil, err
	}
	return f, nil
}

func (f *xmlFile) encode(v interface{}) error {
	return f.enc.Encode(v)
}

// finish closes the document and moves it to path.
func (f *xmlFile) finish(path string) error {
	if err := f.enc.EncodeToken(f.root.End()); err != nil {
		f.discard()
		return err
	}
	if err := f.enc.Flush(); err != nil {
		f.discard()
		return err
	}
	if f.gz != nil {
		if err := f.gz.Close(); err != nil {
			f.discard()
			return err
		}
	}
	if err := f.buf.Flush(); err != nil {
		f.discard()
		return err
	}
	if err := f.tmp.Chmod(0644); err != nil {
		f.discard()
		return err
	}
	info, err := f.tmp.Stat()
	if err != nil {
		f.discard()
		return err
	}
	f.size = info.Size()
	if err := f.tmp.Close(); err != nil {
		os.Remove(f.tmp.Name())
		return err
	}
	if err := os.Rename(f.tmp.Name(), path); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("moving sitemap into place: %w", err)
	}
	return nil
}

func (f *xmlFile) discard() {
	f.tmp.Close()
	os.Remove(f.tmp.Name())
}
