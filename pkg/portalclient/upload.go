package portalclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fundingportal/internal/validation"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxUploadSize is the portal's upload limit when none is configured.
const DefaultMaxUploadSize = validation.DefaultMaxUploadSize

var preflightValidator = validation.New()

// Preflight checks a file against the slot, size and type rules before any
// bytes are sent. maxBytes <= 0 means the portal default. A rejected file
// yields FieldErrors.
func Preflight(documentType string, size, maxBytes int64, head []byte) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadSize
	}
	mimeType, _, _ := strings.Cut(mimetype.Detect(head).String(), ";")
	err := preflightValidator.Upload(documentType, size, maxBytes, mimeType)
	if errs, ok := validation.AsErrors(err); ok {
		return fieldErrorsOf(errs)
	}
	return err
}

func fieldErrorsOf(errs validation.Errors) FieldErrors {
	out := make(FieldErrors, 0, len(errs))
	for _, fe := range errs {
		out = append(out, FieldError{Field: fe.Field, Code: fe.Code, Params: fe.Params})
	}
	return out
}

// UploadDocument sends one file into a document slot of the application.
// The whole file is buffered so it can be checked locally first.
func (c *Client) UploadDocument(ctx context.Context, applicationID, documentType, fileName string, r io.Reader, maxBytes int64) (*Document, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadSize
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileName, err)
	}
	if err := Preflight(documentType, int64(len(data)), maxBytes, data); err != nil {
		return nil, err
	}
	if c.session.Token() == "" {
		return nil, ErrNoSession
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"document_type": documentType}).
		SetFileReader("file", fileName, bytes.NewReader(data)).
		Post("/api/applications/" + applicationID + "/documents")
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", fileName, err)
	}

	var doc Document
	if err := c.checkSession(ctx, decode(resp, &doc)); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DownloadDocument copies the stored file of doc into w and returns the
// number of bytes written. Only the application's owner can download.
func (c *Client) DownloadDocument(ctx context.Context, doc Document, w io.Writer) (int64, error) {
	if c.session.Token() == "" {
		return 0, ErrNoSession
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(doc.FilePath)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", doc.FileName, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		return 0, c.checkSession(ctx, apiError(resp.StatusCode(), raw))
	}
	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", doc.FileName, err)
	}
	return n, nil
}

// Documents lists the uploads of an application.
func (c *Client) Documents(ctx context.Context, applicationID string) (*Documents, error) {
	var docs Documents
	if err := c.authed(ctx, http.MethodGet, "/api/applications/"+applicationID+"/documents", nil, &docs); err != nil {
		return nil, err
	}
	return &docs, nil
}
