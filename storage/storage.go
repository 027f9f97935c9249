// Package storage translates structured storage option documents into the
// process environment consumed by engine credential chains.
//
// The translation is deliberately process-global. Engines resolve object
// store credentials through the AWS default chain at connect time, so the
// only reliable way to hand them per-database credentials from a boundary
// call is to stage the environment before the engine opens the database.
package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/cairndb/cairngo/codec"
)

// Options is the storage options document accepted by connect calls.
// Unknown keys are ignored so callers can send provider sections this
// build does not consume.
type Options struct {
	S3 *S3Options `json:"s3_config,omitempty"`
}

// S3Options carries AWS S3 credentials and addressing options.
// All fields are optional; only present fields are applied.
type S3Options struct {
	AccessKeyID     *string `json:"access_key_id,omitempty"`
	SecretAccessKey *string `json:"secret_access_key,omitempty"`
	SessionToken    *string `json:"session_token,omitempty"`
	Region          *string `json:"region,omitempty"`
	Profile         *string `json:"profile,omitempty"`
}

// ParseOptions decodes an options document. If c is nil the default codec
// is used.
func ParseOptions(c codec.Codec, data []byte) (*Options, error) {
	if c == nil {
		c = codec.Default
	}

	var opts Options
	if err := c.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("failed to parse storage options JSON: %w", err)
	}
	return &opts, nil
}

// ApplyEnv stages the S3 options into the process environment, where the
// AWS default credential chain picks them up. Absent fields leave the
// corresponding variables untouched. Region sets both AWS_REGION and
// AWS_DEFAULT_REGION so older SDK integrations resolve the same value.
func (o *Options) ApplyEnv() error {
	if o == nil || o.S3 == nil {
		return nil
	}

	vars := []struct {
		key string
		val *string
	}{
		{"AWS_ACCESS_KEY_ID", o.S3.AccessKeyID},
		{"AWS_SECRET_ACCESS_KEY", o.S3.SecretAccessKey},
		{"AWS_SESSION_TOKEN", o.S3.SessionToken},
		{"AWS_REGION", o.S3.Region},
		{"AWS_DEFAULT_REGION", o.S3.Region},
		{"AWS_PROFILE", o.S3.Profile},
	}
	for _, v := range vars {
		if v.val == nil {
			continue
		}
		if err := os.Setenv(v.key, *v.val); err != nil {
			return fmt.Errorf("failed to set %s: %w", v.key, err)
		}
	}
	return nil
}

// StaticProvider returns a static credentials provider when both the access
// key ID and the secret are present.
func (o *Options) StaticProvider() (aws.CredentialsProvider, bool) {
	if o == nil || o.S3 == nil || o.S3.AccessKeyID == nil || o.S3.SecretAccessKey == nil {
		return nil, false
	}

	var token string
	if o.S3.SessionToken != nil {
		token = *o.S3.SessionToken
	}
	return credentials.NewStaticCredentialsProvider(*o.S3.AccessKeyID, *o.S3.SecretAccessKey, token), true
}

// ResolveAWS loads the AWS configuration an engine would see after ApplyEnv.
// Region, profile and static credentials are passed to the loader directly
// so resolution does not depend on environment ordering.
func (o *Options) ResolveAWS(ctx context.Context) (aws.Config, error) {
	var loadOpts []func(*config.LoadOptions) error
	if o != nil && o.S3 != nil {
		if o.S3.Region != nil {
			loadOpts = append(loadOpts, config.WithRegion(*o.S3.Region))
		}
		if o.S3.Profile != nil {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(*o.S3.Profile))
		}
		if p, ok := o.StaticProvider(); ok {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(p))
		}
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}
