package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	perrors "github.com/priyadesai-k/sharded-stream-poller/pkg/errors"
)

type fakeKinesisAPI struct {
	listPages  []*kinesis.ListShardsOutput
	listInputs []*kinesis.ListShardsInput

	iteratorOut *kinesis.GetShardIteratorOutput
	iteratorIn  *kinesis.GetShardIteratorInput
	iteratorErr error

	recordsOut *kinesis.GetRecordsOutput
	recordsIn  *kinesis.GetRecordsInput
	recordsErr error
}

func (f *fakeKinesisAPI) ListShards(ctx context.Context, params *kinesis.ListShardsInput, optFns ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error) {
	f.listInputs = append(f.listInputs, params)
	page := f.listPages[len(f.listInputs)-1]
	return page, nil
}

func (f *fakeKinesisAPI) GetShardIterator(ctx context.Context, params *kinesis.GetShardIteratorInput, optFns ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error) {
	f.iteratorIn = params
	if f.iteratorErr != nil {
		return nil, f.iteratorErr
	}
	return f.iteratorOut, nil
}

func (f *fakeKinesisAPI) GetRecords(ctx context.Context, params *kinesis.GetRecordsInput, optFns ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error) {
	f.recordsIn = params
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	return f.recordsOut, nil
}

func TestListShardsFollowsPagination(t *testing.T) {
	api := &fakeKinesisAPI{
		listPages: []*kinesis.ListShardsOutput{
			{
				Shards: []types.Shard{
					{ShardId: aws.String("shardId-000")},
					{ShardId: aws.String("shardId-001"), ParentShardId: aws.String("shardId-000")},
				},
				NextToken: aws.String("token-1"),
			},
			{
				Shards: []types.Shard{
					{ShardId: aws.String("shardId-002")},
				},
			},
		},
	}
	client := newKinesisClient(api)

	shards, err := client.ListShards(context.Background(), "orders")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shards) != 3 {
		t.Fatalf("got %d shards, want 3", len(shards))
	}
	if shards[1].ParentShardID != "shardId-000" {
		t.Errorf("parent shard id = %q", shards[1].ParentShardID)
	}

	// First call names the stream; the follow-up carries only the token.
	if aws.ToString(api.listInputs[0].StreamName) != "orders" {
		t.Errorf("first call stream = %v", api.listInputs[0].StreamName)
	}
	if api.listInputs[1].StreamName != nil {
		t.Error("paginated call must not set StreamName")
	}
	if aws.ToString(api.listInputs[1].NextToken) != "token-1" {
		t.Errorf("paginated call token = %v", api.listInputs[1].NextToken)
	}
}

func TestCreateCursorMapsStartPolicies(t *testing.T) {
	ts := time.Date(2025, 5, 20, 8, 15, 0, 0, time.UTC)
	cases := []struct {
		policy   StartPolicy
		wantType types.ShardIteratorType
		wantTS   bool
	}{
		{StartLatest, types.ShardIteratorTypeLatest, false},
		{StartTrimHorizon, types.ShardIteratorTypeTrimHorizon, false},
		{StartAtTimestamp, types.ShardIteratorTypeAtTimestamp, true},
	}

	for _, tc := range cases {
		api := &fakeKinesisAPI{
			iteratorOut: &kinesis.GetShardIteratorOutput{ShardIterator: aws.String("it-1")},
		}
		client := newKinesisClient(api)

		cursor, err := client.CreateCursor(context.Background(), "orders", "shardId-000", tc.policy, ts)
		if err != nil {
			t.Fatalf("%s: %v", tc.policy, err)
		}
		if cursor != "it-1" {
			t.Errorf("%s: cursor = %q", tc.policy, cursor)
		}
		if api.iteratorIn.ShardIteratorType != tc.wantType {
			t.Errorf("%s: iterator type = %s", tc.policy, api.iteratorIn.ShardIteratorType)
		}
		if tc.wantTS {
			if api.iteratorIn.Timestamp == nil || !api.iteratorIn.Timestamp.Equal(ts) {
				t.Errorf("%s: timestamp = %v, want %v", tc.policy, api.iteratorIn.Timestamp, ts)
			}
		} else if api.iteratorIn.Timestamp != nil {
			t.Errorf("%s: unexpected timestamp %v", tc.policy, api.iteratorIn.Timestamp)
		}
	}
}

func TestFetchRecordsMapsPage(t *testing.T) {
	arrival := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeKinesisAPI{
		recordsOut: &kinesis.GetRecordsOutput{
			Records: []types.Record{
				{
					Data:                        []byte(`{"a":1}`),
					SequenceNumber:              aws.String("seq-1"),
					ApproximateArrivalTimestamp: aws.Time(arrival),
					PartitionKey:                aws.String("pk-1"),
				},
			},
			NextShardIterator: aws.String("it-next"),
		},
	}
	client := newKinesisClient(api)

	page, err := client.FetchRecords(context.Background(), "it-1", 50)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.NextCursor != "it-next" {
		t.Errorf("next cursor = %q", page.NextCursor)
	}
	if len(page.Records) != 1 || page.Records[0].SequenceNumber != "seq-1" {
		t.Fatalf("records = %+v", page.Records)
	}
	if !page.Records[0].ArrivalTimestamp.Equal(arrival) {
		t.Errorf("arrival = %v", page.Records[0].ArrivalTimestamp)
	}
	if aws.ToInt32(api.recordsIn.Limit) != 50 {
		t.Errorf("limit = %v", api.recordsIn.Limit)
	}
}

func TestFetchRecordsClosedShard(t *testing.T) {
	api := &fakeKinesisAPI{
		recordsOut: &kinesis.GetRecordsOutput{NextShardIterator: nil},
	}
	client := newKinesisClient(api)

	page, err := client.FetchRecords(context.Background(), "it-1", 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if page.NextCursor != "" {
		t.Fatalf("closed shard must report an empty next cursor, got %q", page.NextCursor)
	}
}

func TestFetchRecordsClassifiesExpiredIterator(t *testing.T) {
	api := &fakeKinesisAPI{
		recordsErr: &types.ExpiredIteratorException{Message: aws.String("Iterator expired")},
	}
	client := newKinesisClient(api)

	_, err := client.FetchRecords(context.Background(), "it-old", 0)
	if !perrors.IsCursorExpired(err) {
		t.Fatalf("expected cursor-expired classification, got %v", err)
	}
}

func TestFetchRecordsKeepsOtherErrorsOpaque(t *testing.T) {
	api := &fakeKinesisAPI{
		recordsErr: errors.New("connection reset"),
	}
	client := newKinesisClient(api)

	_, err := client.FetchRecords(context.Background(), "it-1", 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if perrors.IsCursorExpired(err) {
		t.Fatal("transient failure misclassified as expired cursor")
	}
}

func TestParseStartPolicy(t *testing.T) {
	for in, want := range map[string]StartPolicy{
		"LATEST":       StartLatest,
		"trim_horizon": StartTrimHorizon,
		"At_Timestamp": StartAtTimestamp,
	} {
		got, err := ParseStartPolicy(in)
		if err != nil {
			t.Errorf("%s: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("%s: got %s", in, got)
		}
	}
	if _, err := ParseStartPolicy("EARLIEST"); err == nil {
		t.Error("unknown policy accepted")
	}
}
