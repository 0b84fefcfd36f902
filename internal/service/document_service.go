package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fundingportal/internal/metrics"
	"fundingportal/internal/model"
	"fundingportal/internal/repository"
	"fundingportal/internal/storage"
	"fundingportal/internal/validation"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// sniffLen is how much of the upload is buffered for content type detection.
const sniffLen = 3072

// UploadInput is one file for one document slot.
type UploadInput struct {
	DocumentType string
	FileName     string
	Size         int64
	Body         io.Reader
}

// DocumentsResponse lists every upload of an application plus the current file per slot.
type DocumentsResponse struct {
	Documents []model.Document           `json:"documents"`
	Slots     map[string]*model.Document `json:"slots"`
	Complete  bool                       `json:"complete"`
}

type DocumentService interface {
	Upload(ctx context.Context, userID, applicationID uuid.UUID, in UploadInput) (*model.Document, error)
	List(ctx context.Context, userID, applicationID uuid.UUID) (*DocumentsResponse, error)
	// Open returns a document of the caller's application with its stored file.
	// The caller closes the file.
	Open(ctx context.Context, userID, applicationID, documentID uuid.UUID) (*model.Document, storage.File, error)
}

type documentService struct {
	tx        repository.TransactionManager
	apps      repository.ApplicationRepository
	docs      repository.DocumentRepository
	audit     repository.AuditRepository
	store     storage.BlobStore
	validator *validation.Validator
	maxSize   int64
	metrics   *metrics.Metrics
	notifier  Notifier
	now       func() time.Time
	log       zerolog.Logger
}

func NewDocumentService(
	tx repository.TransactionManager,
	apps repository.ApplicationRepository,
	docs repository.DocumentRepository,
	audit repository.AuditRepository,
	store storage.BlobStore,
	v *validation.Validator,
	maxSize int64,
	opts Options,
) DocumentService {
	opts = opts.withDefaults()
	if maxSize <= 0 {
		maxSize = validation.DefaultMaxUploadSize
	}
	return &documentService{
		tx:        tx,
		apps:      apps,
		docs:      docs,
		audit:     audit,
		store:     store,
		validator: v,
		maxSize:   maxSize,
		metrics:   opts.Metrics,
		notifier:  opts.Notifier,
		now:       opts.Now,
		log:       opts.Logger.With().Str("component", "documents").Logger(),
	}
}

func (s *documentService) Upload(ctx context.Context, userID, applicationID uuid.UUID, in UploadInput) (*model.Document, error) {
	app, err := s.ownedApplication(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status == model.StatusApproved || app.Status == model.StatusRejected {
		return nil, ErrApplicationClosed
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: read upload: %w", ErrUploadFailed, err)
	}
	head = head[:n]
	detected := mimetype.Detect(head)
	mimeType, _, _ := strings.Cut(detected.String(), ";")

	if err := s.validator.Upload(in.DocumentType, in.Size, s.maxSize, mimeType); err != nil {
		s.metrics.ObserveUpload(in.DocumentType, "rejected")
		return nil, classifyUploadError(err)
	}

	now := s.now()
	docID := uuid.New()
	key := blobKey(applicationID, docID, in.DocumentType, now, detected.Extension())
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), in.Body), s.maxSize+1)

	written, err := s.store.Put(ctx, key, body)
	if err != nil {
		s.metrics.ObserveUpload(in.DocumentType, "failed")
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if written > s.maxSize {
		s.removeBlob(key)
		s.metrics.ObserveUpload(in.DocumentType, "rejected")
		return nil, classifyUploadError(s.validator.Upload(in.DocumentType, written, s.maxSize, mimeType))
	}

	doc := &model.Document{
		ID:            docID,
		ApplicationID: applicationID,
		DocumentType:  in.DocumentType,
		FileName:      cleanFileName(in.FileName, in.DocumentType+detected.Extension()),
		FilePath:      DownloadPath(applicationID, docID),
		StorageKey:    key,
		FileSize:      written,
		MimeType:      mimeType,
		UploadStatus:  model.UploadCompleted,
		UploadedAt:    &now,
	}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.docs.Create(txCtx, doc); err != nil {
			return err
		}
		return s.audit.Record(txCtx, &userID, model.ActionUploadDocument, doc.ID.String(), doc.FileName,
			map[string]interface{}{
				"application_id": applicationID.String(),
				"document_type":  doc.DocumentType,
				"file_size":      doc.FileSize,
			})
	})
	if err != nil {
		s.removeBlob(key)
		s.metrics.ObserveUpload(in.DocumentType, "failed")
		return nil, fmt.Errorf("%w: record metadata: %w", ErrUploadFailed, err)
	}

	s.metrics.ObserveUpload(in.DocumentType, model.UploadCompleted)
	notify(s.notifier, userID, Event{
		Type:              EventDocumentUploaded,
		ApplicationID:     applicationID.String(),
		ApplicationNumber: app.ApplicationNumber,
		Status:            app.Status,
		DocumentType:      doc.DocumentType,
		OccurredAt:        now,
	})
	return doc, nil
}

func (s *documentService) List(ctx context.Context, userID, applicationID uuid.UUID) (*DocumentsResponse, error) {
	if _, err := s.ownedApplication(ctx, userID, applicationID); err != nil {
		return nil, err
	}
	docs, err := s.docs.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	slots := LatestBySlot(docs)
	return &DocumentsResponse{Documents: docs, Slots: slots, Complete: AllSlotsComplete(slots)}, nil
}

func (s *documentService) Open(ctx context.Context, userID, applicationID, documentID uuid.UUID) (*model.Document, storage.File, error) {
	if _, err := s.ownedApplication(ctx, userID, applicationID); err != nil {
		return nil, nil, err
	}
	doc, err := s.docs.FindInApplication(ctx, applicationID, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc.UploadStatus != model.UploadCompleted {
		return nil, nil, ErrDocumentNotFound
	}

	f, err := s.store.Open(ctx, doc.StorageKey)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Error().Str("document_id", doc.ID.String()).Str("key", doc.StorageKey).Msg("document blob is missing")
		return nil, nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open document: %w", err)
	}
	return doc, f, nil
}

// DownloadPath is the authenticated route a document's file is served from.
func DownloadPath(applicationID, documentID uuid.UUID) string {
	return fmt.Sprintf("/api/applications/%s/documents/%s/file", applicationID, documentID)
}

// blobKey names a stored file. The document id keeps keys unique when two
// uploads for the same slot land in the same millisecond.
func blobKey(applicationID, documentID uuid.UUID, documentType string, at time.Time, ext string) string {
	return fmt.Sprintf("%s/%s_%d_%s%s", applicationID, documentType, at.UnixMilli(), documentID, ext)
}

func (s *documentService) ownedApplication(ctx context.Context, userID, id uuid.UUID) (*model.Application, error) {
	app, err := s.apps.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app.UserID != userID {
		return nil, ErrApplicationNotFound
	}
	return app, nil
}

// removeBlob deletes an orphaned blob. Failures are only logged.
func (s *documentService) removeBlob(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to remove orphaned blob")
	}
}

// LatestBySlot picks the newest completed document for each of the three slots.
// Slots with no completed upload are absent from the map.
func LatestBySlot(docs []model.Document) map[string]*model.Document {
	slots := make(map[string]*model.Document, len(model.RequiredDocumentTypes))
	for i := range docs {
		d := &docs[i]
		if d.UploadStatus != model.UploadCompleted || !model.IsDocumentType(d.DocumentType) {
			continue
		}
		if cur, ok := slots[d.DocumentType]; !ok || d.CreatedAt.After(cur.CreatedAt) {
			slots[d.DocumentType] = d
		}
	}
	return slots
}

// AllSlotsComplete reports whether every required slot holds a completed document.
func AllSlotsComplete(slots map[string]*model.Document) bool {
	for _, t := range model.RequiredDocumentTypes {
		if slots[t] == nil {
			return false
		}
	}
	return true
}

func classifyUploadError(err error) error {
	verrs, ok := validation.AsErrors(err)
	if !ok {
		return err
	}
	for _, fe := range verrs {
		switch fe.Code {
		case validation.CodeFileTooLarge:
			return fmt.Errorf("%w: %w", ErrFileTooLarge, err)
		case validation.CodeInvalidFileType:
			return fmt.Errorf("%w: %w", ErrUnsupportedFileType, err)
		}
	}
	return err
}

func cleanFileName(name, fallback string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		name = fallback
	}
	if len(name) > 255 {
		name = name[len(name)-255:]
	}
	return name
}
