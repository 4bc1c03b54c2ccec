package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bizpilot/journey-engine/internal/models"
)

// JourneySnapshot is the archived record of a completed journey: the final
// aggregate plus every step response submitted along the way.
type JourneySnapshot struct {
	Progress  models.JourneyProgress `json:"progress"`
	Responses []models.StepResponse  `json:"responses"`
}

// Archiver stores completed-journey snapshots in object storage.
type Archiver interface {
	ArchiveJourney(ctx context.Context, snap JourneySnapshot) error
}

// S3Archiver writes snapshots to S3 paths like:
//
//	s3://<bucket>/<prefix>/journeys/YYYY/MM/DD/<journeyID>.json
type S3Archiver struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// NewS3Archiver creates an S3Archiver. Region and credentials come from the
// environment (AWS_REGION, AWS_PROFILE, AWS_ACCESS_KEY_ID etc.).
func NewS3Archiver(ctx context.Context, bucket, prefix string) (*S3Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket required")
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Archiver{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// ObjectKey returns the key a snapshot is stored under, derived from the
// journey's completion time (or now when unset).
func (a *S3Archiver) ObjectKey(snap JourneySnapshot) string {
	ts := time.Now().UTC()
	if snap.Progress.CompletedAt != nil {
		ts = *snap.Progress.CompletedAt
	}
	year, month, day := ts.Date()
	return path.Join(a.prefix, "journeys",
		fmt.Sprintf("%04d", year),
		fmt.Sprintf("%02d", int(month)),
		fmt.Sprintf("%02d", day),
		fmt.Sprintf("%s.json", snap.Progress.ID),
	)
}

func (a *S3Archiver) ArchiveJourney(ctx context.Context, snap JourneySnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(a.ObjectKey(snap)),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("s3 upload failed: %w", err)
	}
	return nil
}
