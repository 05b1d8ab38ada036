package tui

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

// downloadAttachment saves the attachment next to the working directory under
// its display name. http(s) URLs are fetched; anything else is treated as a
// local path.
func downloadAttachment(a sheet.Attachment) (string, error) {
	name := a.DisplayName()
	if name == "" {
		name = "attachment"
	}

	var src io.ReadCloser
	if strings.HasPrefix(a.URL, "http://") || strings.HasPrefix(a.URL, "https://") {
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Get(a.URL)
		if err != nil {
			return "", err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", fmt.Errorf("download %s: status %d", a.URL, resp.StatusCode)
		}
		src = resp.Body
	} else {
		f, err := os.Open(strings.TrimPrefix(a.URL, "file://"))
		if err != nil {
			return "", err
		}
		src = f
	}
	defer src.Close()

	out, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, src); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}
