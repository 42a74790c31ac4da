package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"creatorhub/internal/logger"
	"creatorhub/internal/models"
	"creatorhub/internal/services/dto"
	"creatorhub/internal/storage"
	"creatorhub/pkg/apperrors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen matches the prefix mimetype inspects by default.
const sniffLen = 3072

// UploadLimits bounds chat file uploads. An empty AllowedTypes accepts any type.
type UploadLimits struct {
	MaxSize      int64
	AllowedTypes []string
}

type AttachmentService interface {
	// Store saves the file and returns the attachment together with the
	// message kind derived from its sniffed content type.
	Store(ctx context.Context, roomID uint, name string, size int64, r io.Reader) (*dto.AttachmentInput, models.MessageKind, error)
	// Discard removes a stored attachment whose message could not be saved.
	Discard(ctx context.Context, url string)
}

type attachmentService struct {
	storage storage.Storage
	limits  UploadLimits
	now     func() time.Time
}

func NewAttachmentService(store storage.Storage, limits UploadLimits) AttachmentService {
	return &attachmentService{
		storage: store,
		limits:  limits,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *attachmentService) allowed(mime *mimetype.MIME) bool {
	if len(s.limits.AllowedTypes) == 0 {
		return true
	}
	for _, t := range s.limits.AllowedTypes {
		if mime.Is(t) || (strings.HasSuffix(t, "/*") && strings.HasPrefix(mime.String(), strings.TrimSuffix(t, "*"))) {
			return true
		}
	}
	return false
}

func (s *attachmentService) Store(ctx context.Context, roomID uint, name string, size int64, r io.Reader) (*dto.AttachmentInput, models.MessageKind, error) {
	if s.limits.MaxSize > 0 && size > s.limits.MaxSize {
		return nil, "", apperrors.ErrFileTooLarge
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, "", apperrors.InternalError(err)
	}
	head = head[:n]
	if n == 0 {
		return nil, "", apperrors.ValidationError(map[string]string{"file": "File is empty"})
	}

	mime := mimetype.Detect(head)
	if !s.allowed(mime) {
		return nil, "", apperrors.ErrInvalidFileType.WithDetails(map[string]string{"mimeType": mime.String()})
	}

	kind := models.MessageKindFile
	if strings.HasPrefix(mime.String(), "image/") {
		kind = models.MessageKindImage
	}

	now := s.now()
	key := path.Join("chat", fmt.Sprintf("%d", roomID), now.Format("2006/01"), uuid.NewString()+mime.Extension())
	contentType := strings.SplitN(mime.String(), ";", 2)[0]

	if err := s.storage.Save(ctx, key, io.MultiReader(bytes.NewReader(head), r), contentType); err != nil {
		return nil, "", apperrors.InternalError(err)
	}

	return &dto.AttachmentInput{
		URL:      s.storage.URL(key),
		Name:     path.Base(name),
		Size:     size,
		MimeType: contentType,
	}, kind, nil
}

func (s *attachmentService) Discard(ctx context.Context, url string) {
	key := strings.TrimPrefix(url, strings.TrimSuffix(s.storage.URL(""), "/")+"/")
	if err := s.storage.Delete(ctx, key); err != nil {
		logger.CtxWarn(ctx, "failed to discard attachment", "key", key, "error", err)
	}
}
