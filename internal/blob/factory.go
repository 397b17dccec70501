package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"barcoder/internal/infra/blob/fs"
	"barcoder/internal/infra/blob/memory"
	"barcoder/internal/infra/blob/s3"
)

// Config selects and configures a backend.
type Config struct {
	Driver Driver `yaml:"driver"`
	Root   string `yaml:"root"`
	S3     S3     `yaml:"s3"`
}

// S3 configures the s3 driver. Credentials may be left empty to use the
// default AWS chain.
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
}

// Open returns the backend named by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return fs.New(cfg.Root)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// ConfigFromEnv overlays environment variables on base:
//
//	BARCODER_BLOB_DRIVER: fs|s3|memory
//	BARCODER_BLOB_FS_ROOT: directory root for fs
//	BARCODER_BLOB_S3_BUCKET, _PREFIX, _REGION, _ENDPOINT, _PATH_STYLE
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY are read by the AWS chain.
func ConfigFromEnv(base Config) Config {
	set := func(dst *string, name string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("BARCODER_BLOB_DRIVER"); v != "" {
		base.Driver = Driver(v)
	}
	set(&base.Root, "BARCODER_BLOB_FS_ROOT")
	set(&base.S3.Bucket, "BARCODER_BLOB_S3_BUCKET")
	set(&base.S3.Prefix, "BARCODER_BLOB_S3_PREFIX")
	set(&base.S3.Region, "BARCODER_BLOB_S3_REGION")
	set(&base.S3.Endpoint, "BARCODER_BLOB_S3_ENDPOINT")
	if v := os.Getenv("BARCODER_BLOB_S3_PATH_STYLE"); v != "" {
		base.S3.PathStyle = strings.EqualFold(v, "true")
	}
	return base
}
