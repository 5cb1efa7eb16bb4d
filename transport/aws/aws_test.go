package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/protowamp/transport"
	"github.com/drblury/protowamp/transport/transporttest"
)

func stubFactories(t *testing.T, pubErr error) (*sns.PublisherConfig, *sqs.SubscriberConfig) {
	t.Helper()
	originalConfigLoader := DefaultConfigLoader
	originalTopicResolver := TopicResolverFactory
	originalPubFactory := PublisherFactory
	originalSubFactory := SubscriberFactory
	t.Cleanup(func() {
		DefaultConfigLoader = originalConfigLoader
		TopicResolverFactory = originalTopicResolver
		PublisherFactory = originalPubFactory
		SubscriberFactory = originalSubFactory
	})

	var pubCfg sns.PublisherConfig
	var sqsCfg sqs.SubscriberConfig
	DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
	TopicResolverFactory = func(accountID, region string) (*sns.GenerateArnTopicResolver, error) {
		return sns.NewGenerateArnTopicResolver(accountID, region)
	}
	PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		if pubErr != nil {
			return nil, pubErr
		}
		return &transporttest.Publisher{}, nil
	}
	SubscriberFactory = func(cfg sns.SubscriberConfig, s sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		sqsCfg = s
		return transporttest.Subscriber{}, nil
	}
	return &pubCfg, &sqsCfg
}

func TestRegister(t *testing.T) {
	reg := transport.DefaultRegistry
	t.Cleanup(func() { transport.DefaultRegistry = reg })
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "aws", caps.Name)
	assert.False(t, caps.SupportsSessions())
	assert.Equal(t, transport.AWSCapabilities, Capabilities())
}

func TestBuild(t *testing.T) {
	pubCfg, sqsCfg := stubFactories(t, nil)

	cfg := &transporttest.Config{AWSRegion: "eu-central-1", AWSAccountID: "123456789012"}
	tr, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
	assert.Empty(t, pubCfg.OptFns)
	assert.Empty(t, sqsCfg.OptFns)

	arn, err := pubCfg.TopicResolver.ResolveTopic(context.Background(), "wamp.session.42.in")
	require.NoError(t, err)
	assert.Equal(t, sns.TopicArn("arn:aws:sns:eu-central-1:123456789012:wamp-session-42-in"), arn)
}

func TestBuildWithEndpoint(t *testing.T) {
	pubCfg, sqsCfg := stubFactories(t, nil)

	cfg := &transporttest.Config{AWSRegion: "us-east-1", AWSEndpoint: "http://localhost:4566"}
	_, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)
	assert.Len(t, pubCfg.OptFns, 1)
	assert.Len(t, sqsCfg.OptFns, 1)

	arn, err := pubCfg.TopicResolver.ResolveTopic(context.Background(), "t")
	require.NoError(t, err)
	assert.Contains(t, string(arn), localstackAccountID)
}

func TestBuildErrors(t *testing.T) {
	t.Run("config loader fails", func(t *testing.T) {
		stubFactories(t, nil)
		DefaultConfigLoader = func(ctx context.Context, opts ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
			return aws.Config{}, errors.New("config error")
		}
		_, err := Build(context.Background(), &transporttest.Config{AWSRegion: "us-east-1"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "config error")
	})

	t.Run("publisher fails", func(t *testing.T) {
		stubFactories(t, errors.New("publisher error"))
		_, err := Build(context.Background(), &transporttest.Config{AWSRegion: "us-east-1", AWSAccountID: "123456789012"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "publisher error")
	})

	t.Run("bad endpoint", func(t *testing.T) {
		stubFactories(t, nil)
		_, err := Build(context.Background(), &transporttest.Config{AWSRegion: "us-east-1", AWSEndpoint: "://bad"}, watermill.NopLogger{})
		assert.ErrorContains(t, err, "failed to parse AWS endpoint")
	})
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "wamp-session-7-out", TopicName("wamp.session.7.out"))
	assert.Equal(t, "ok_name-1", TopicName("ok_name-1"))
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, TopicName(string(long)), maxTopicNameLength)
}

func TestResolveAccountAndRegion(t *testing.T) {
	logger := watermill.NopLogger{}

	account, region := resolveAccountAndRegion(&transporttest.Config{AWSAccountID: "'123456789012'"}, logger, "fallback")
	assert.Equal(t, "123456789012", account)
	assert.Equal(t, "fallback", region)

	account, _ = resolveAccountAndRegion(&transporttest.Config{AWSAccountID: "42", AWSEndpoint: "http://localhost:4566"}, logger, "")
	assert.Equal(t, localstackAccountID, account)
}

func TestStaticCredentialsProvider(t *testing.T) {
	creds, err := staticCredentialsProvider("id", "secret").Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}
