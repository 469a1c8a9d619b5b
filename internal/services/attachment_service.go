package services

import (
	"context"
	"fmt"
	"strings"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/storage"
	market_errors "marketplace-chat/pkg/errors"

	"github.com/google/uuid"
)

type PresignAttachmentInput struct {
	ConversationID uuid.UUID
	CallerID       uuid.UUID
	FileName       string
	MimeType       string
	Size           int64
}

type PresignAttachmentResult struct {
	storage.PresignedUpload
	MessageType message.Type `json:"messageType"`
}

type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (storage.PresignedUpload, error)
}

type AttachmentService struct {
	conversations *ConversationService
	presigner     Presigner
	maxFileSize   int64
}

func NewAttachmentService(conversations *ConversationService, presigner Presigner, maxFileSize int64) *AttachmentService {
	return &AttachmentService{conversations: conversations, presigner: presigner, maxFileSize: maxFileSize}
}

func (s *AttachmentService) Enabled() bool {
	return s != nil && s.presigner != nil
}

// Presign issues an upload URL for a participant. The returned key goes back
// in the IMAGE/FILE message that references the upload.
func (s *AttachmentService) Presign(ctx context.Context, input PresignAttachmentInput) (PresignAttachmentResult, error) {
	if !s.Enabled() {
		return PresignAttachmentResult{}, market_errors.ErrServiceUnavailable
	}
	if _, err := s.conversations.Load(ctx, input.ConversationID, input.CallerID); err != nil {
		return PresignAttachmentResult{}, err
	}

	name := strings.TrimSpace(input.FileName)
	mime := strings.TrimSpace(input.MimeType)
	if name == "" || mime == "" {
		return PresignAttachmentResult{}, fmt.Errorf("%w: fileName and fileMimeType are required", market_errors.ErrValidation)
	}
	if input.Size <= 0 {
		return PresignAttachmentResult{}, fmt.Errorf("%w: fileSize must be positive", market_errors.ErrValidation)
	}
	if s.maxFileSize > 0 && input.Size > s.maxFileSize {
		return PresignAttachmentResult{}, market_errors.ErrTooLarge
	}

	upload, err := s.presigner.PresignPut(ctx, storage.AttachmentKey(input.ConversationID, name), mime, input.Size)
	if err != nil {
		return PresignAttachmentResult{}, err
	}

	msgType := message.TypeFile
	if strings.HasPrefix(mime, "image/") {
		msgType = message.TypeImage
	}
	return PresignAttachmentResult{PresignedUpload: upload, MessageType: msgType}, nil
}
