// Package upload implements the attachment upload collaborators the grid
// engine delegates to: a local content-addressed directory for development
// and an HTTP client for a Cloudinary-style unsigned upload endpoint.
package upload

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/orimhanre/distrinaranjos-sub001/internal/sheet"
)

// Local stores uploads under Dir, named by content hash so re-uploads
// deduplicate, and returns URLs under BaseURL.
type Local struct {
	Dir     string
	BaseURL string
}

func (l *Local) Upload(_ context.Context, ownerID, fieldKey string, files []sheet.UploadFile) ([]sheet.Attachment, error) {
	subdir := filepath.Join(l.Dir, ownerID, fieldKey)
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		return nil, fmt.Errorf("upload dir %s: %w", subdir, err)
	}
	out := make([]sheet.Attachment, 0, len(files))
	for _, f := range files {
		sum := sha1.Sum(f.Data)
		name := hex.EncodeToString(sum[:8]) + filepath.Ext(f.Name)
		path := filepath.Join(subdir, name)
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write upload %s: %w", f.Name, err)
		}
		out = append(out, sheet.Attachment{
			URL:      l.BaseURL + "/" + ownerID + "/" + fieldKey + "/" + name,
			PublicID: ownerID + "/" + fieldKey + "/" + name,
			Size:     int64(len(f.Data)),
			MimeType: f.MimeType,
			Filename: f.Name,
		})
	}
	return out, nil
}

// HTTP posts each file to an unsigned upload endpoint and maps the response
// into an attachment record. Any single failure fails the whole request.
type HTTP struct {
	Endpoint string
	Preset   string
	Client   *http.Client
}

type uploadResponse struct {
	SecureURL        string `json:"secure_url"`
	PublicID         string `json:"public_id"`
	Bytes            int64  `json:"bytes"`
	Format           string `json:"format"`
	OriginalFilename string `json:"original_filename"`
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (h *HTTP) Upload(ctx context.Context, ownerID, fieldKey string, files []sheet.UploadFile) ([]sheet.Attachment, error) {
	out := make([]sheet.Attachment, 0, len(files))
	for _, f := range files {
		att, err := h.uploadOne(ctx, ownerID, fieldKey, f)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.Name, err)
		}
		out = append(out, att)
	}
	return out, nil
}

func (h *HTTP) uploadOne(ctx context.Context, ownerID, fieldKey string, f sheet.UploadFile) (sheet.Attachment, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if h.Preset != "" {
		w.WriteField("upload_preset", h.Preset)
	}
	w.WriteField("folder", ownerID+"/"+fieldKey)
	part, err := w.CreateFormFile("file", f.Name)
	if err != nil {
		return sheet.Attachment{}, err
	}
	if _, err := part.Write(f.Data); err != nil {
		return sheet.Attachment{}, err
	}
	if err := w.Close(); err != nil {
		return sheet.Attachment{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, &body)
	if err != nil {
		return sheet.Attachment{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.client().Do(req)
	if err != nil {
		return sheet.Attachment{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return sheet.Attachment{}, fmt.Errorf("upload endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return sheet.Attachment{}, err
	}
	filename := f.Name
	if ur.OriginalFilename != "" && ur.Format != "" {
		filename = ur.OriginalFilename + "." + ur.Format
	}
	return sheet.Attachment{
		URL:      ur.SecureURL,
		PublicID: ur.PublicID,
		Size:     ur.Bytes,
		MimeType: f.MimeType,
		Filename: filename,
	}, nil
}
