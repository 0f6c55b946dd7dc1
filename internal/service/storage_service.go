package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"course_platform_backend/internal/config"
	"course_platform_backend/internal/util"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageProvider 定义通用存储接口。核心只持有 Upload 返回的引用，
// 文件内容全部在存储方。
type StorageProvider interface {
	Upload(ctx context.Context, ref string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
	GetDownloadURL(ref string) string
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, ref string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, ref)
	dir := filepath.Dir(dst)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}

	return ref, nil
}

func (p *LocalStorageProvider) Delete(ctx context.Context, ref string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, ref))
}

func (p *LocalStorageProvider) GetDownloadURL(ref string) string {
	return "/uploads/" + ref
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, ref string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, ref, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, ref string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, ref, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetDownloadURL(ref string) string {
	return "/" + p.Config.MinioBucket + "/" + ref
}

// OSSStorageProvider 阿里云OSS存储实现
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) Upload(ctx context.Context, ref string, reader io.Reader, size int64, contentType string) (string, error) {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return "", err
	}
	if err := bucket.PutObject(ref, reader); err != nil {
		return "", err
	}
	return ref, nil
}

func (p *OSSStorageProvider) Delete(ctx context.Context, ref string) error {
	bucket, err := p.Client.Bucket(p.Config.OSSBucket)
	if err != nil {
		return err
	}
	return bucket.DeleteObject(ref)
}

func (p *OSSStorageProvider) GetDownloadURL(ref string) string {
	return fmt.Sprintf("https://%s.%s/%s", p.Config.OSSBucket, p.Config.OSSEndpoint, ref)
}

// StorageService 存储服务，按配置选择提供方，默认退回本地存储
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	switch cfg.Storage.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err == nil {
			provider = p
		}
	case util.StorageOSS:
		p, err := NewOSSStorageProvider(&cfg.Storage)
		if err == nil {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	return &StorageService{Provider: provider}
}

func (s *StorageService) Upload(ctx context.Context, ref string, reader io.Reader, size int64, contentType string) (string, error) {
	return s.Provider.Upload(ctx, ref, reader, size, contentType)
}

func (s *StorageService) Delete(ctx context.Context, ref string) error {
	return s.Provider.Delete(ctx, ref)
}

func (s *StorageService) GetDownloadURL(ref string) string {
	return s.Provider.GetDownloadURL(ref)
}
