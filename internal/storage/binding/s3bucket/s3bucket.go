// Пакет s3bucket — реализация binding.Bucket поверх клиента AWS SDK v2
// для S3-совместимых хранилищ (Cloudflare R2, MinIO, AWS S3).
package s3bucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/bigkaa/flashshare/internal/storage/binding"
)

// Config — параметры подключения к bucket.
type Config struct {
	// Endpoint — URL S3-совместимого API (https://<account>.r2.cloudflarestorage.com)
	Endpoint string
	// Region — регион подписи ("auto" для R2)
	Region string
	// Bucket — имя bucket
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Timeout — таймаут одного HTTP-запроса SDK (0 — без ограничения)
	Timeout time.Duration
}

// Bucket — binding.Bucket поверх *s3.Client.
type Bucket struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

// New создаёт клиент S3 со статическими учётными данными и path-style адресацией.
func New(ctx context.Context, cfg Config) (*Bucket, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3bucket: не заданы endpoint или bucket")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("s3bucket: не заданы учётные данные")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	// SDK добавляет AWS_CA_BUNDLE через WithTransportOptions,
	// поэтому клиент должен быть BuildableClient, а не *http.Client
	httpClient := awshttp.NewBuildableClient()
	if cfg.Timeout > 0 {
		httpClient = httpClient.WithTimeout(cfg.Timeout)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		awsconfig.WithHTTPClient(httpClient),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3bucket: ошибка загрузки конфигурации SDK: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		// S3-совместимые хранилища адресуют bucket через путь
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Bucket{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
	}, nil
}

// Put загружает поток через upload manager (multipart для больших файлов).
func (b *Bucket) Put(ctx context.Context, key string, r io.Reader, meta binding.ObjectMetadata) error {
	input := &s3.PutObjectInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: meta.Custom,
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if meta.ContentDisposition != "" {
		input.ContentDisposition = aws.String(meta.ContentDisposition)
	}
	if meta.CacheControl != "" {
		input.CacheControl = aws.String(meta.CacheControl)
	}

	_, err := b.uploader.Upload(ctx, input)
	return err
}

// Get открывает объект. Отсутствующий объект — (nil, false, nil).
func (b *Bucket) Get(ctx context.Context, key string) (io.ReadCloser, bool, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return out.Body, true, nil
}

// Delete удаляет объект. Отсутствие объекта не является ошибкой.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// isNotFound распознаёт NoSuchKey и ответы 404.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}

var _ binding.Bucket = (*Bucket)(nil)
