// Package extension installs the outlier-ranking Chrome extension that the
// scout browser loads from disk.
package extension

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	updateEndpoint = "https://clients2.google.com/service/update2/crx"
	prodVersion    = "98.0.4758.102"
	crxMagic       = "Cr24"
)

var (
	ErrMissing = errors.New("extension not found")
	ErrBadCRX  = errors.New("not a valid crx/zip archive")
)

// Ensure reports ErrMissing unless path is an existing directory.
func Ensure(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w at %s", ErrMissing, path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w at %s: not a directory", ErrMissing, path)
	}
	return nil
}

// DownloadURL is the update-service redirect that serves the CRX for extID.
func DownloadURL(extID string) string {
	q := url.Values{
		"response":     {"redirect"},
		"prodversion":  {prodVersion},
		"acceptformat": {"crx2,crx3"},
		"x":            {"id=" + extID + "&uc"},
	}
	return updateEndpoint + "?" + q.Encode()
}

// Download fetches the extension package from src and unpacks it into dest.
// Pass DownloadURL(id) for the public store.
func Download(ctx context.Context, client *http.Client, src, dest string) error {
	log.Printf("Downloading extension from %s", src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download extension: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download extension: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read extension: %w", err)
	}

	n, err := Unpack(data, dest)
	if err != nil {
		return err
	}
	log.Printf("Extension unpacked to %s (%d files)", dest, n)
	return nil
}

// Unpack extracts a CRX (v2 or v3) or plain zip into dest and returns the
// number of files written.
func Unpack(data []byte, dest string) (int, error) {
	payload, err := crxPayload(data)
	if err != nil {
		return 0, err
	}

	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadCRX, err)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, err
	}
	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return written, fmt.Errorf("%w: entry %q escapes destination", ErrBadCRX, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, err
			}
			continue
		}
		if err := writeEntry(f, target); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// crxPayload strips the CRX header, leaving the embedded zip. Data without
// the CRX magic is returned unchanged.
func crxPayload(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte(crxMagic)) {
		return data, nil
	}
	if len(data) < 12 {
		return nil, ErrBadCRX
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	var offset uint64
	switch version {
	case 2:
		if len(data) < 16 {
			return nil, ErrBadCRX
		}
		keyLen := binary.LittleEndian.Uint32(data[8:12])
		sigLen := binary.LittleEndian.Uint32(data[12:16])
		offset = 16 + uint64(keyLen) + uint64(sigLen)
	case 3:
		headerLen := binary.LittleEndian.Uint32(data[8:12])
		offset = 12 + uint64(headerLen)
	default:
		return nil, fmt.Errorf("%w: unsupported crx version %d", ErrBadCRX, version)
	}

	if offset > uint64(len(data)) {
		return nil, ErrBadCRX
	}
	return data[offset:], nil
}
