// internal/media/media.go
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/vortexsms/campaign-engine/internal/model"
	"github.com/vortexsms/campaign-engine/internal/transport"
)

// maxSize caps attachment downloads at 50 MB, matching the API body
// limit of the original system.
const maxSize = 50 << 20

var client = &http.Client{Timeout: 30 * time.Second}

// MimeFromFilename guesses a mime type from the file extension,
// defaulting to application/octet-stream.
func MimeFromFilename(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".bmp"):
		return "image/bmp"
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".mp4"), strings.HasSuffix(lower, ".mov"):
		return "video/mp4"
	case strings.HasSuffix(lower, ".doc"), strings.HasSuffix(lower, ".docx"):
		return "application/msword"
	}
	return "application/octet-stream"
}

// FromURL downloads a media reference and builds the transport payload.
// Redirects are followed by the client; a non-200 status is an error so
// the caller can fall back to a text-only send.
func FromURL(ctx context.Context, m *model.Media) (*transport.Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch media: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize))
	if err != nil {
		return nil, err
	}

	filename := "attachment"
	if u, err := url.Parse(m.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			filename = base
		}
	}
	mime := m.Mime
	if mime == "" {
		mime = resp.Header.Get("Content-Type")
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = MimeFromFilename(filename)
	}
	return &transport.Media{
		Mime:     mime,
		Filename: filename,
		Data:     data,
		Caption:  m.Caption,
	}, nil
}
