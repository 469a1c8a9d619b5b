package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrNotConfigured = errors.New("s3 storage is not configured")

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	PresignTTL time.Duration
}

// Client presigns attachment uploads. Files go straight from the browser to
// the bucket; messages only store the resulting object key.
type Client struct {
	cfg     S3Config
	s3      *s3.Client
	presign *s3.PresignClient
}

func NewClient(ctx context.Context, cfg S3Config) (*Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	cfg.PublicBase = strings.TrimRight(cfg.PublicBase, "/")

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		cfg:     cfg,
		s3:      s3Client,
		presign: s3.NewPresignClient(s3Client),
	}, nil
}

type PresignedUpload struct {
	URL       string            `json:"uploadUrl"`
	Key       string            `json:"fileKey"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
	FileURL   string            `json:"fileUrl,omitempty"`
}

func (c *Client) PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (PresignedUpload, error) {
	if c == nil {
		return PresignedUpload{}, ErrNotConfigured
	}
	if key == "" {
		return PresignedUpload{}, errors.New("object key is required")
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if sizeBytes > 0 {
		input.ContentLength = aws.Int64(sizeBytes)
	}

	presigned, err := c.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(c.cfg.PresignTTL))
	if err != nil {
		return PresignedUpload{}, fmt.Errorf("presign put %s: %w", key, err)
	}

	headers := map[string]string{}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	if sizeBytes > 0 {
		headers["Content-Length"] = strconv.FormatInt(sizeBytes, 10)
	}

	return PresignedUpload{
		URL:       presigned.URL,
		Key:       key,
		Headers:   headers,
		ExpiresAt: time.Now().Add(c.cfg.PresignTTL),
		FileURL:   c.FileURL(key),
	}, nil
}

// FileURL is empty unless a public base URL is configured.
func (c *Client) FileURL(key string) string {
	if c == nil || key == "" || c.cfg.PublicBase == "" {
		return ""
	}
	return c.cfg.PublicBase + "/" + key
}

// AttachmentPrefix is the key namespace of one conversation's uploads.
func AttachmentPrefix(conversationID uuid.UUID) string {
	return "attachments/" + conversationID.String() + "/"
}

// OwnsAttachmentKey reports whether key is a plain object key inside the
// conversation's namespace.
func OwnsAttachmentKey(conversationID uuid.UUID, key string) bool {
	prefix := AttachmentPrefix(conversationID)
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
		return false
	}
	return path.Clean(key) == key && !strings.Contains(key, "..")
}

// AttachmentKey namespaces uploads by conversation so keys never collide.
func AttachmentKey(conversationID uuid.UUID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	key := AttachmentPrefix(conversationID) + uuid.New().String()
	if ext == "" || len(ext) > 10 {
		return key
	}
	return key + ext
}
