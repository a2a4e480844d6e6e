package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/joao-fontenele/cellarflow/internal/validation"
)

const imageKeyPrefix = "images/"

// UploadSigner hands out time-limited URLs that let a client PUT a product
// image straight to object storage.
type UploadSigner interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
}

type S3Signer struct {
	client *s3.PresignClient
	bucket string
	expiry time.Duration
}

func NewS3Signer(client *s3.Client, bucket string, expiry time.Duration) *S3Signer {
	return &S3Signer{client: s3.NewPresignClient(client), bucket: bucket, expiry: expiry}
}

func (s *S3Signer) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	req, err := s.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
}

type ImageHandler struct {
	signer  UploadSigner
	timeout time.Duration
	logger  *slog.Logger
}

func NewImageHandler(signer UploadSigner, timeout time.Duration, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{signer: signer, timeout: timeout, logger: logger}
}

type uploadURLRequest struct {
	FileName string `json:"fileName" validate:"required,max=255"`
	FileType string `json:"fileType" validate:"required,max=100"`
}

type uploadURLResponse struct {
	PresignedURL string `json:"presignedUrl"`
	ImageRef     string `json:"imageRef"`
}

// HandleUploadURL signs an upload for one image. The returned imageRef is
// the object key to store on the product once the upload succeeds.
func (h *ImageHandler) HandleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Struct(req); err != nil {
		fail(w, h.logger, err, "invalid upload request")
		return
	}

	key := imageKeyPrefix + path.Base(req.FileName)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	url, err := h.signer.PresignUpload(ctx, key, req.FileType)
	if err != nil {
		fail(w, h.logger, err, "failed to presign upload", "key", key)
		return
	}

	h.logger.Info("upload url issued", "key", key, "content_type", req.FileType)
	writeJSON(w, h.logger, http.StatusOK, uploadURLResponse{PresignedURL: url, ImageRef: key})
}
