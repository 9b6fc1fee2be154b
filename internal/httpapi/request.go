package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const multipartMemory = 32 << 20

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return invalid("body", "request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return invalid("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// parseUpload limits the body to the configured upload size and parses the
// multipart form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return invalid("body", fmt.Sprintf("invalid multipart form: %v", err))
	}
	return nil
}

type uploadedFile struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

func readUploadedFile(fh *multipart.FileHeader) (uploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return uploadedFile{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return uploadedFile{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	if len(data) == 0 {
		return uploadedFile{}, invalid("file", fmt.Sprintf("%s is empty", fh.Filename))
	}
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	return uploadedFile{Name: fh.Filename, MIMEType: mimeType, Size: int64(len(data)), Data: data}, nil
}

func singleFile(r *http.Request) (*multipart.FileHeader, error) {
	files := r.MultipartForm.File["file"]
	if len(files) != 1 {
		return nil, invalid("file", "exactly one file is required")
	}
	return files[0], nil
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}
