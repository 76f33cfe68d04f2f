package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/joshp123/xiqsync/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store keeps the token as an object in S3-compatible storage.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3Store(cfg config.MirrorConfig) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	bucket := strings.TrimSpace(cfg.Bucket)
	prefix := strings.TrimSpace(cfg.Prefix)
	accessKeyFile := strings.TrimSpace(cfg.AccessKeyFile)
	secretKeyFile := strings.TrimSpace(cfg.SecretKeyFile)

	if endpoint == "" || bucket == "" || accessKeyFile == "" || secretKeyFile == "" {
		return nil, fmt.Errorf("missing token mirror configuration")
	}

	accessKey, err := readSecretFile(accessKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read mirror access key: %w", err)
	}
	secretKey, err := readSecretFile(secretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read mirror secret key: %w", err)
	}

	host, secure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	if prefix == "" {
		prefix = config.DefaultMirrorPrefix
	}

	return &S3Store{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3Store) Load(ctx context.Context) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(), minio.GetObjectOptions{})
	if err != nil {
		return "", s.wrapError(err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return "", s.wrapError(err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("read mirrored credential: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *S3Store) Save(ctx context.Context, token string) error {
	reader := bytes.NewReader([]byte(token))
	_, err := s.client.PutObject(ctx, s.bucket, s.key(), reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return s.wrapError(err)
	}
	return nil
}

func (s *S3Store) key() string {
	return path.Join(s.prefix, "xiq_token")
}

func (s *S3Store) wrapError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" {
		return ErrCredentialNotFound
	}
	return err
}

// MirroredStore writes through to a primary store and a mirror. Loads prefer
// the primary and re-seed it from the mirror when the primary is empty.
// Mirror failures never fail the caller.
type MirroredStore struct {
	Primary CredentialStore
	Mirror  CredentialStore
}

func (m MirroredStore) Load(ctx context.Context) (string, error) {
	token, err := m.Primary.Load(ctx)
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, ErrCredentialNotFound) {
		return "", err
	}

	mirrored, mirrorErr := m.Mirror.Load(ctx)
	if mirrorErr != nil || mirrored == "" {
		if mirrorErr != nil && !errors.Is(mirrorErr, ErrCredentialNotFound) {
			mirrorPersistOK.Set(0)
			log.Printf("credential mirror load failed: %v", mirrorErr)
		}
		if err != nil {
			return "", err
		}
		return token, nil
	}

	if err := m.Primary.Save(ctx, mirrored); err != nil {
		return "", err
	}
	return mirrored, nil
}

func (m MirroredStore) Save(ctx context.Context, token string) error {
	if err := m.Primary.Save(ctx, token); err != nil {
		return err
	}
	if err := m.Mirror.Save(ctx, token); err != nil {
		mirrorPersistOK.Set(0)
		log.Printf("credential mirror save failed: %v", err)
		return nil
	}
	mirrorPersistOK.Set(1)
	return nil
}

func parseEndpoint(raw string) (string, bool, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint: %w", err)
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint: %q", raw)
		}
		return u.Host, u.Scheme == "https", nil
	}
	return raw, true, nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
