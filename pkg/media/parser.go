// Package media turns an opaque uploaded blob into a typed in-memory
// representation: a single file, or a recursively flattened archive of
// files when the blob sniffs as a member of the zip family.
package media

import (
	"archive/zip"
	"bytes"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/gabriel-vasile/mimetype"
)

// Mimetypes treated as potentially-zipped uploads. octet-stream is in
// the list because browsers routinely upload zips under it; an
// octet-stream body that fails to unzip falls back to a single file.
var zipFamily = map[string]bool{
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/x-rar-compressed": true,
	"application/octet-stream":     true,
}

// Parse turns an upload into a Media value. It returns nil when the
// input has no body or when a zip-typed body cannot be unzipped;
// callers must treat a nil result as "failed to parse submission" and
// reject with a client error. Parse never returns an error value: a
// bad upload is an expected input, not a fault.
func Parse(fileName string, data []byte) Media {
	if len(data) == 0 {
		return nil
	}

	detected := mimetype.Detect(data)

	if zipFamily[detected.String()] || detected.Is("application/zip") {
		if archive := parseArchive(fileName, detected.String(), data); archive != nil {
			return archive
		}
		// octet-stream that is not actually a zip is still a valid
		// single-file upload; a declared zip that fails to open is not.
		if detected.String() != "application/octet-stream" {
			return nil
		}
	}

	return &MediaFile{
		Name:     path.Base(fileName),
		MimeType: detected.String(),
		Data:     data,
	}
}

func parseArchive(fileName, mimeType string, data []byte) *Archive {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		logger.Log.WithError(err).WithField("file", fileName).Warn("upload declared as archive could not be unzipped")
		return nil
	}

	archive := &Archive{
		MediaFile: MediaFile{
			Name:     path.Base(fileName),
			MimeType: mimeType,
			Data:     data,
		},
	}

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		content, err := readEntry(entry)
		if err != nil {
			logger.Log.WithError(err).WithField("entry", entry.Name).Warn("skipping unreadable archive entry")
			continue
		}
		name := path.Base(entry.Name)
		archive.Files = append(archive.Files, &MediaFile{
			Name:     name,
			MimeType: sniffByExtension(name),
			Data:     content,
		})
	}

	if len(archive.Files) == 0 {
		return nil
	}
	return archive
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func sniffByExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		// strip any charset parameter; worksheet handling only cares
		// about the base type
		if idx := strings.Index(byExt, ";"); idx >= 0 {
			return strings.TrimSpace(byExt[:idx])
		}
		return byExt
	}
	switch ext {
	case ".csv":
		return "text/csv"
	case ".xml":
		return "application/xml"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
