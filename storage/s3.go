package storage

import (
	"bytes"
	"context"
	"fmt"

	"coursemate/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client erstellt einen S3-Client für den Asset-Storage (Avatar-Bilder).
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.AssetS3URL,
				SigningRegion:     cfg.AssetS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.AssetS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AssetS3Key, cfg.AssetS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// UploadAvatar lädt ein Avatar-Bild ins S3 hoch und gibt den öffentlichen Link zurück.
func UploadAvatar(ctx context.Context, client *s3.Client, cfg *config.Config, userID string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("avatars/%s", userID)
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(cfg.AssetS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	link := fmt.Sprintf("%s/%s/%s", cfg.AssetS3URL, cfg.AssetS3Bucket, key)
	return link, nil
}
