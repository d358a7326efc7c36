package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"

	"github.com/soyeahso/voicerelay/internal/domain"
)

const (
	mimeGoogleDoc   = "application/vnd.google-apps.document"
	mimeGoogleSheet = "application/vnd.google-apps.spreadsheet"

	fileFields = "files(id, name, mimeType, modifiedTime, size)"

	// maxDownload bounds how much of a file is read into memory.
	maxDownload = 10 << 20
)

// Drive lists, searches and reads files in the user's Google Drive.
type Drive struct {
	svc *drive.Service
}

// ListFiles returns the most recently modified files.
func (d *Drive) ListFiles(ctx context.Context, max int) ([]domain.File, error) {
	r, err := d.svc.Files.List().
		PageSize(int64(max)).
		Fields(fileFields).
		Q("trashed = false").
		OrderBy("modifiedTime desc").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("drive list: %w", err)
	}
	return filesFromAPI(r.Files), nil
}

// SearchFiles matches query against file names and full text.
func (d *Drive) SearchFiles(ctx context.Context, query string, max int) ([]domain.File, error) {
	r, err := d.svc.Files.List().
		PageSize(int64(max)).
		Fields(fileFields).
		Q(searchQuery(query)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("drive search: %w", err)
	}
	return filesFromAPI(r.Files), nil
}

// FileContent returns a file's text. Images come back as
// domain.ImageContentPrefix followed by a data URL.
func (d *Drive) FileContent(ctx context.Context, fileID string) (string, error) {
	meta, err := d.svc.Files.Get(fileID).Fields("id, name, mimeType").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive get %s: %w", fileID, err)
	}

	switch kind := contentKind(meta.MimeType, meta.Name); kind {
	case kindExportText, kindExportCSV:
		target := "text/plain"
		if kind == kindExportCSV {
			target = "text/csv"
		}
		resp, err := d.svc.Files.Export(fileID, target).Context(ctx).Download()
		if err != nil {
			return "", fmt.Errorf("drive export %s: %w", fileID, err)
		}
		data, err := readBody(resp)
		return string(data), err
	case kindText:
		resp, err := d.svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return "", fmt.Errorf("drive download %s: %w", fileID, err)
		}
		data, err := readBody(resp)
		return string(data), err
	case kindImage:
		resp, err := d.svc.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return "", fmt.Errorf("drive download %s: %w", fileID, err)
		}
		data, err := readBody(resp)
		if err != nil {
			return "", err
		}
		return imageContent(meta.MimeType, data), nil
	default:
		return fmt.Sprintf("Cannot read content of file type: %s", meta.MimeType), nil
	}
}

type fileKind int

const (
	kindUnsupported fileKind = iota
	kindExportText
	kindExportCSV
	kindText
	kindImage
)

func contentKind(mimeType, name string) fileKind {
	switch {
	case mimeType == mimeGoogleDoc:
		return kindExportText
	case mimeType == mimeGoogleSheet:
		return kindExportCSV
	case strings.HasPrefix(mimeType, "image/"):
		return kindImage
	case strings.Contains(mimeType, "text"),
		mimeType == "application/json",
		mimeType == "application/xml",
		strings.Contains(mimeType, "csv"),
		strings.HasSuffix(strings.ToLower(name), ".csv"):
		return kindText
	default:
		return kindUnsupported
	}
}

func imageContent(mimeType string, data []byte) string {
	return domain.ImageContentPrefix + "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("read drive content: %w", err)
	}
	return data, nil
}

// searchQuery builds a Drive query for q with quotes and backslashes escaped.
func searchQuery(q string) string {
	esc := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(q)
	return fmt.Sprintf("(name contains '%s' or fullText contains '%s') and trashed = false", esc, esc)
}

func filesFromAPI(files []*drive.File) []domain.File {
	out := make([]domain.File, 0, len(files))
	for _, f := range files {
		out = append(out, domain.File{
			ID:           f.Id,
			Name:         f.Name,
			MimeType:     f.MimeType,
			ModifiedTime: f.ModifiedTime,
			Size:         f.Size,
		})
	}
	return out
}
