package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"fundingportal/internal/service"
	"fundingportal/internal/validation"
	"fundingportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartOverhead is the room left for form boundaries and the document_type field.
const multipartOverhead = 1 << 20

type DocumentHandler struct {
	documentService service.DocumentService
	maxUploadBytes  int64
}

func NewDocumentHandler(documentService service.DocumentService, maxUploadBytes int64) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = validation.DefaultMaxUploadSize
	}
	return &DocumentHandler{documentService: documentService, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes expects a group that already requires a valid session.
func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	docs := router.Group("/api/applications/:id/documents")
	{
		docs.POST("", h.Upload)
		docs.GET("", h.List)
		docs.GET("/:docId/file", h.Download)
	}
}

// Upload stores a file in one of the three document slots
// @Summary      Upload document
// @Description  Uploads a JPEG, PNG or PDF into identity_front, identity_back or rib. Uploading into a filled slot supersedes the previous file.
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id             path      string  true  "Application ID"
// @Param        document_type  formData  string  true  "identity_front, identity_back or rib"
// @Param        file           formData  file    true  "Document file"
// @Success      201            {object}  response.Response{data=model.Document}
// @Failure      413            {object}  response.Response
// @Failure      415            {object}  response.Response
// @Failure      422            {object}  response.Response
// @Router       /api/applications/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, fmt.Errorf("%w: %w", service.ErrFileTooLarge,
				validation.Errors{{Field: "file", Code: validation.CodeFileTooLarge}}))
			return
		}
		respondError(c, validation.Errors{{Field: "file", Code: validation.CodeRequired}})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, fmt.Errorf("%w: open upload: %w", service.ErrUploadFailed, err))
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(c.Request.Context(), userID, id, service.UploadInput{
		DocumentType: c.PostForm("document_type"),
		FileName:     fileHeader.Filename,
		Size:         fileHeader.Size,
		Body:         file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, doc))
}

// List returns every upload of an application and the current file per slot
// @Summary      List documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.DocumentsResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/applications/{id}/documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.documentService.List(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Download streams the file of one document to the application's owner
// @Summary      Download document
// @Tags         documents
// @Security     BearerAuth
// @Produce      application/pdf,image/jpeg,image/png
// @Param        id     path      string  true  "Application ID"
// @Param        docId  path      string  true  "Document ID"
// @Success      200    {file}    file
// @Failure      401    {object}  response.Response
// @Failure      404    {object}  response.Response
// @Router       /api/applications/{id}/documents/{docId}/file [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	docID, err := uuid.Parse(c.Param("docId"))
	if err != nil {
		badRequest(c, "Invalid document ID")
		return
	}

	doc, f, err := h.documentService.Open(c.Request.Context(), userID, id, docID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	modTime := doc.CreatedAt
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	c.Header("Content-Type", doc.MimeType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "private, no-store")
	http.ServeContent(c.Writer, c.Request, doc.FileName, modTime, f)
}
