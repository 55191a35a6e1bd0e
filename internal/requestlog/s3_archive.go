package requestlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"relaygate/internal/utils"
)

// S3Writer uploads batches of Snapshot records to S3 as JSON Lines
// objects, for off-site archival of the debugging trail.
type S3Writer struct {
	client  *s3.Client
	bucket  string
	prefix  string
	podName string
	log     *utils.Logger
}

// NewS3Writer builds an S3Writer. With accessKeyID/secretAccessKey both
// set, it authenticates with those static credentials instead of the
// default chain, for archiving to a bucket or S3-compatible endpoint that
// IAM roles can't reach. Either may be left empty to fall back to the
// default chain (instance role, env vars, shared config).
func NewS3Writer(ctx context.Context, bucket, region, prefix, podName, accessKeyID, secretAccessKey string) (*S3Writer, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("requestlog: load AWS config: %w", err)
	}
	return &S3Writer{
		client:  s3.NewFromConfig(cfg),
		bucket:  bucket,
		prefix:  prefix,
		podName: podName,
		log:     utils.NewLogger("requestlog-s3"),
	}, nil
}

// WriteBatch uploads snapshots as one JSON Lines object keyed by date and
// pod name, returning the key written.
func (w *S3Writer) WriteBatch(ctx context.Context, snapshots []Snapshot) (string, error) {
	if len(snapshots) == 0 {
		return "", nil
	}
	now := time.Now()
	key := fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		w.prefix, now.Year(), now.Month(), now.Day(),
		w.podName, now.Format("20060102-150405"), now.Nanosecond())

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, snap := range snapshots {
		if err := enc.Encode(snap); err != nil {
			w.log.Error("failed to encode snapshot", "error", err)
			continue
		}
	}

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("requestlog: upload snapshot batch to s3: %w", err)
	}
	w.log.Info("archived snapshot batch to s3", "key", key, "count", len(snapshots))
	return key, nil
}
