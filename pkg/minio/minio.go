package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"DietServer/config"
	"DietServer/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var global *Client

// Client MinIO 客户端封装（餐食照片存储）。
type Client struct {
	client *minio.Client
	config config.MinIOConfig
}

// Global 返回全局 MinIO 客户端（未初始化时为 nil）。
func Global() *Client {
	return global
}

// ReplaceGlobal 设置全局 MinIO 客户端。
func ReplaceGlobal(c *Client) {
	global = c
}

// ErrFileTooLarge 文件超过大小限制。
var ErrFileTooLarge = errors.New("file exceeds size limit")

// ErrTypeNotAllowed 文件类型不在允许列表。
var ErrTypeNotAllowed = errors.New("content type not allowed")

// Build 基于配置创建 MinIO 客户端，并确保 Bucket 存在。
func Build(cfg config.MinIOConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is empty")
	}
	if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
		return nil, errors.New("minio credentials are empty")
	}
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("minio bucketName is empty")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	client := &Client{client: mc, config: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := mc.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket exists: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Location}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		logger.Info(ctx, "MinIO Bucket 创建成功", logger.String("bucket", cfg.BucketName))

		if cfg.PublicRead {
			policy := fmt.Sprintf(`{
				"Version": "2012-10-17",
				"Statement": [
					{
						"Effect": "Allow",
						"Principal": {"AWS": ["*"]},
						"Action": ["s3:GetObject"],
						"Resource": ["arn:aws:s3:::%s/*"]
					}
				]
			}`, cfg.BucketName)
			if err := mc.SetBucketPolicy(ctx, cfg.BucketName, policy); err != nil {
				logger.Warn(ctx, "设置 Bucket 公开策略失败",
					logger.String("bucket", cfg.BucketName),
					logger.ErrorField("error", err),
				)
			}
		}
	}

	return client, nil
}

// UploadResult 上传结果。
type UploadResult struct {
	ObjectName  string // 完整对象路径，如 meals/2026/08/uuid.jpg
	Size        int64
	ETag        string
	URL         string // 外部访问地址
	ContentType string
}

// UploadMealPhoto 上传餐食照片。
// 基于文件内容（Magic Bytes）检测真实 MIME 类型，伪装扩展名的文件会被拒绝。
func (c *Client) UploadMealPhoto(ctx context.Context, reader io.Reader, fileSize int64) (*UploadResult, error) {
	if c.config.MaxFileSize > 0 && fileSize > c.config.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	// http.DetectContentType 需要前 512 字节
	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read file head: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	if !c.isAllowedType(contentType) {
		logger.Warn(ctx, "餐食照片类型不在允许列表",
			logger.String("detected_type", contentType),
			logger.Any("allowed_types", c.config.AllowedTypes),
		)
		return nil, ErrTypeNotAllowed
	}

	objectName := c.mealObjectName(contentType)

	uploadCtx := ctx
	if c.config.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, c.config.UploadTimeout)
		defer cancel()
	}

	// 已消费的 head 与剩余内容重新拼接
	info, err := c.client.PutObject(
		uploadCtx,
		c.config.BucketName,
		objectName,
		io.MultiReader(bytes.NewReader(head), reader),
		fileSize,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		logger.Error(ctx, "MinIO 上传失败",
			logger.String("object", objectName),
			logger.Int64("size", fileSize),
			logger.ErrorField("error", err),
		)
		return nil, fmt.Errorf("minio upload: %w", err)
	}

	return &UploadResult{
		ObjectName:  objectName,
		Size:        info.Size,
		ETag:        info.ETag,
		URL:         c.objectURL(objectName),
		ContentType: contentType,
	}, nil
}

// mealObjectName 生成对象路径: meals/{yyyy}/{MM}/{uuid}{ext}
func (c *Client) mealObjectName(contentType string) string {
	now := time.Now()
	ext := extFromContentType(contentType)
	return path.Join("meals", now.Format("2006"), now.Format("01"), uuid.New().String()+ext)
}

// objectURL 拼接外部访问 URL。
func (c *Client) objectURL(objectName string) string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	return fmt.Sprintf("%s/%s/%s", base, c.config.BucketName, objectName)
}

func (c *Client) isAllowedType(contentType string) bool {
	if len(c.config.AllowedTypes) == 0 {
		return true
	}
	for _, t := range c.config.AllowedTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

func extFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
