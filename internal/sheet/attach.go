package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"path"
	"strings"
)

// Attachment is one image reference inside an image-typed cell. URL is the
// only field guaranteed non-empty. Legacy records imported from the old admin
// were bare URL strings; those round-trip as strings and cannot be renamed.
type Attachment struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Filename string `json:"filename,omitempty"`
	Legacy   bool   `json:"-"`
}

// ErrAttachmentReadOnly is returned when renaming a legacy bare-URL record,
// which has no filename field to mutate.
var ErrAttachmentReadOnly = errors.New("sheet: legacy attachment has no filename")

// DisplayName is the filename to show, derived from the URL's last path
// segment when the record carries none.
func (a Attachment) DisplayName() string {
	if a.Filename != "" {
		return a.Filename
	}
	return filenameFromURL(a.URL)
}

func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		if i := strings.LastIndex(raw, "/"); i >= 0 {
			return raw[i+1:]
		}
		return raw
	}
	return path.Base(u.Path)
}

func normalizeAttachment(raw string) Attachment {
	return Attachment{URL: raw, Legacy: true}
}

// UnmarshalJSON accepts both the structured object form and the legacy bare
// string form.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = normalizeAttachment(s)
		return nil
	}
	type plain Attachment
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Attachment(p)
	return nil
}

// MarshalJSON writes legacy records back as bare strings so a load/save cycle
// never silently upgrades them.
func (a Attachment) MarshalJSON() ([]byte, error) {
	if a.Legacy {
		return json.Marshal(a.URL)
	}
	type plain Attachment
	return json.Marshal(plain(a))
}

// UploadFile is one binary blob handed to the upload collaborator.
type UploadFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// Uploader is the attachment upload collaborator: given an opaque owner (row)
// identifier and a field key, it stores each file and returns one attachment
// record per input file, in order.
type Uploader interface {
	Upload(ctx context.Context, ownerID, fieldKey string, files []UploadFile) ([]Attachment, error)
}

// Attachments returns the attachment array of an image cell.
func (e *Engine) Attachments(rowID, key string) ([]Attachment, error) {
	cell, err := e.imageCell(rowID, key)
	if err != nil {
		return nil, err
	}
	return cell.Value.Attachments, nil
}

// UploadAttachments runs the collaborator for the given files and appends the
// results to the cell. The append is all-or-nothing: a failed upload leaves
// the cell untouched.
func (e *Engine) UploadAttachments(ctx context.Context, up Uploader, rowID, key string, files []UploadFile) error {
	if e.readOnly {
		return ErrReadOnly
	}
	if len(files) == 0 {
		return nil
	}
	cell, err := e.imageCell(rowID, key)
	if err != nil {
		return err
	}
	added, err := up.Upload(ctx, rowID, key, files)
	if err != nil {
		return err
	}
	cell.Value.Attachments = append(cell.Value.Attachments, added...)
	e.touchRow(rowID)
	return nil
}

// DeleteAttachment removes the attachment at index.
func (e *Engine) DeleteAttachment(rowID, key string, index int) error {
	if e.readOnly {
		return ErrReadOnly
	}
	cell, err := e.imageCell(rowID, key)
	if err != nil {
		return err
	}
	items := cell.Value.Attachments
	if index < 0 || index >= len(items) {
		return errIndexRange
	}
	cell.Value.Attachments = append(items[:index], items[index+1:]...)
	e.touchRow(rowID)
	return nil
}

// RenameAttachment updates only the filename; the URL is preserved verbatim.
// Legacy bare-URL records refuse the rename.
func (e *Engine) RenameAttachment(rowID, key string, index int, filename string) error {
	if e.readOnly {
		return ErrReadOnly
	}
	cell, err := e.imageCell(rowID, key)
	if err != nil {
		return err
	}
	items := cell.Value.Attachments
	if index < 0 || index >= len(items) {
		return errIndexRange
	}
	if items[index].Legacy {
		return ErrAttachmentReadOnly
	}
	items[index].Filename = filename
	e.touchRow(rowID)
	return nil
}

func (e *Engine) imageCell(rowID, key string) (*Cell, error) {
	col := e.sheet.ColumnByKey(key)
	if col == nil {
		return nil, ErrColumnNotFound
	}
	if col.Type != TypeImage {
		return nil, errNotImageColumn
	}
	row := e.sheet.RowByID(rowID)
	if row == nil {
		return nil, ErrRowNotFound
	}
	cell, ok := row.Cells[key]
	if !ok {
		return nil, ErrColumnNotFound
	}
	return cell, nil
}

var (
	errIndexRange     = errors.New("sheet: attachment index out of range")
	errNotImageColumn = errors.New("sheet: column is not image-typed")
)

// Viewer is the full-screen attachment viewer state for one cell. It stays
// valid across deletions because it re-reads the cell on every operation.
type Viewer struct {
	eng   *Engine
	rowID string
	key   string
	Index int
	open  bool
}

// OpenViewer opens the viewer on the attachment at index. Opening an empty
// cell returns a closed viewer.
func (e *Engine) OpenViewer(rowID, key string, index int) (*Viewer, error) {
	items, err := e.Attachments(rowID, key)
	if err != nil {
		return nil, err
	}
	v := &Viewer{eng: e, rowID: rowID, key: key}
	if len(items) == 0 {
		return v, nil
	}
	if index < 0 || index >= len(items) {
		index = 0
	}
	v.Index = index
	v.open = true
	return v, nil
}

// Open reports whether the viewer is showing.
func (v *Viewer) Open() bool { return v.open }

// Close hides the viewer.
func (v *Viewer) Close() { v.open = false }

func (v *Viewer) items() []Attachment {
	items, _ := v.eng.Attachments(v.rowID, v.key)
	return items
}

// Len returns the current attachment count.
func (v *Viewer) Len() int { return len(v.items()) }

// Current returns the attachment under the cursor.
func (v *Viewer) Current() (Attachment, bool) {
	items := v.items()
	if !v.open || v.Index < 0 || v.Index >= len(items) {
		return Attachment{}, false
	}
	return items[v.Index], true
}

// Next advances the cursor, wrapping at the end.
func (v *Viewer) Next() {
	if n := v.Len(); n > 0 {
		v.Index = (v.Index + 1) % n
	}
}

// Prev moves the cursor back, wrapping at the start.
func (v *Viewer) Prev() {
	if n := v.Len(); n > 0 {
		v.Index = (v.Index - 1 + n) % n
	}
}

// ShowStrip reports whether the thumbnail strip should render.
func (v *Viewer) ShowStrip() bool { return v.Len() > 1 }

// DeleteCurrent removes the attachment under the cursor. Deleting the last
// remaining attachment closes the viewer; deleting the final index moves the
// cursor to the new last item.
func (v *Viewer) DeleteCurrent() error {
	if !v.open {
		return nil
	}
	if err := v.eng.DeleteAttachment(v.rowID, v.key, v.Index); err != nil {
		return err
	}
	n := v.Len()
	if n == 0 {
		v.open = false
		v.Index = 0
		return nil
	}
	if v.Index >= n {
		v.Index = n - 1
	}
	return nil
}

// RenameCurrent renames the attachment under the cursor.
func (v *Viewer) RenameCurrent(filename string) error {
	if !v.open {
		return nil
	}
	return v.eng.RenameAttachment(v.rowID, v.key, v.Index, filename)
}
