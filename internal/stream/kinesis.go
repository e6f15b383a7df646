package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"github.com/priyadesai-k/sharded-stream-poller/pkg/config"
	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
)

// kinesisAPI is the subset of the Kinesis SDK client the adapter uses.
type kinesisAPI interface {
	ListShards(ctx context.Context, params *kinesis.ListShardsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error)
	GetShardIterator(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error)
}

// KinesisClient implements Client on top of AWS Kinesis. Shard iterators
// play the role of cursors.
type KinesisClient struct {
	api    kinesisAPI
	logger *slog.Logger
}

// NewKinesisClient builds a KinesisClient from the default AWS credential
// chain. A non-empty endpoint overrides the service URL, which is how local
// stacks (kinesalite, LocalStack) are targeted.
func NewKinesisClient(ctx context.Context, cfg config.KinesisConfig) (*KinesisClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	api := kinesis.NewFromConfig(awsCfg, func(o *kinesis.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newKinesisClient(api), nil
}

func newKinesisClient(api kinesisAPI) *KinesisClient {
	return &KinesisClient{
		api:    api,
		logger: slog.Default().With("component", "kinesis-client"),
	}
}

// ListShards returns every shard currently belonging to the stream,
// following pagination.
func (c *KinesisClient) ListShards(ctx context.Context, streamName string) ([]Shard, error) {
	var (
		shards    []Shard
		nextToken *string
	)
	for {
		input := &kinesis.ListShardsInput{}
		if nextToken != nil {
			// The API rejects StreamName when NextToken is set.
			input.NextToken = nextToken
		} else {
			input.StreamName = aws.String(streamName)
		}
		out, err := c.api.ListShards(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("listing shards of %s: %w", streamName, err)
		}
		for _, s := range out.Shards {
			shards = append(shards, fromSDKShard(s))
		}
		if out.NextToken == nil {
			return shards, nil
		}
		nextToken = out.NextToken
	}
}

// CreateCursor obtains a shard iterator positioned according to the start
// policy. For AT_TIMESTAMP the timestamp is passed through verbatim.
func (c *KinesisClient) CreateCursor(ctx context.Context, streamName, shardID string, policy StartPolicy, ts time.Time) (string, error) {
	input := &kinesis.GetShardIteratorInput{
		StreamName: aws.String(streamName),
		ShardId:    aws.String(shardID),
	}
	switch policy {
	case StartTrimHorizon:
		input.ShardIteratorType = types.ShardIteratorTypeTrimHorizon
	case StartAtTimestamp:
		input.ShardIteratorType = types.ShardIteratorTypeAtTimestamp
		input.Timestamp = aws.Time(ts)
	default:
		input.ShardIteratorType = types.ShardIteratorTypeLatest
	}

	out, err := c.api.GetShardIterator(ctx, input)
	if err != nil {
		return "", fmt.Errorf("creating cursor for shard %s: %w", shardID, err)
	}
	return aws.ToString(out.ShardIterator), nil
}

// FetchRecords reads one page of records. An expired or malformed iterator
// is reported as errors.ErrCursorExpired so the fetcher can recover.
func (c *KinesisClient) FetchRecords(ctx context.Context, cursor string, maxRecords int) (*RecordPage, error) {
	input := &kinesis.GetRecordsInput{
		ShardIterator: aws.String(cursor),
	}
	if maxRecords > 0 {
		input.Limit = aws.Int32(int32(maxRecords))
	}
	out, err := c.api.GetRecords(ctx, input)
	if err != nil {
		if isExpiredCursor(err) {
			return nil, fmt.Errorf("%w: %v", perrors.ErrCursorExpired, err)
		}
		return nil, fmt.Errorf("fetching records: %w", err)
	}

	page := &RecordPage{
		Records:    make([]Record, 0, len(out.Records)),
		NextCursor: aws.ToString(out.NextShardIterator),
	}
	for _, r := range out.Records {
		page.Records = append(page.Records, Record{
			Data:             r.Data,
			SequenceNumber:   aws.ToString(r.SequenceNumber),
			ArrivalTimestamp: aws.ToTime(r.ApproximateArrivalTimestamp),
			PartitionKey:     aws.ToString(r.PartitionKey),
		})
	}
	return page, nil
}

// isExpiredCursor reports whether the Kinesis error means the iterator can
// no longer be used and a fresh one must be created.
func isExpiredCursor(err error) bool {
	var expired *types.ExpiredIteratorException
	if errors.As(err, &expired) {
		return true
	}
	var invalid *types.InvalidArgumentException
	return errors.As(err, &invalid)
}

func fromSDKShard(s types.Shard) Shard {
	shard := Shard{
		ID:                    aws.ToString(s.ShardId),
		ParentShardID:         aws.ToString(s.ParentShardId),
		AdjacentParentShardID: aws.ToString(s.AdjacentParentShardId),
	}
	if s.HashKeyRange != nil {
		shard.HashKeyRange = KeyRange{
			Start: aws.ToString(s.HashKeyRange.StartingHashKey),
			End:   aws.ToString(s.HashKeyRange.EndingHashKey),
		}
	}
	if s.SequenceNumberRange != nil {
		shard.SequenceNumberRange = KeyRange{
			Start: aws.ToString(s.SequenceNumberRange.StartingSequenceNumber),
			End:   aws.ToString(s.SequenceNumberRange.EndingSequenceNumber),
		}
	}
	return shard
}
