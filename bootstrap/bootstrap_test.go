package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verishield-pipeline/config"
)

func TestLoadAWSConfig_LocalEndpoint(t *testing.T) {
	cfg := &config.Config{
		AWSRegion:      "eu-west-1",
		AWSEndpointURL: "http://localhost:4566",
		AWSAccessKeyID: "test",
		AWSSecretKey:   "secret",
	}

	awsCfg, err := LoadAWSConfig(context.TODO(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", awsCfg.Region)
	creds, err := awsCfg.Credentials.Retrieve(context.TODO())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)

	endpoint, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint("sqs", "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566", endpoint.URL)
}

func TestLoadAWSConfig_DefaultEndpoints(t *testing.T) {
	awsCfg, err := LoadAWSConfig(context.TODO(), &config.Config{AWSRegion: "us-east-1"})
	require.NoError(t, err)

	assert.Nil(t, awsCfg.EndpointResolverWithOptions)
}
