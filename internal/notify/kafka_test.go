package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"
)

const testTopic = "simulation-events"

func newTestCluster(t *testing.T) []string {
	t.Helper()
	cluster, err := kfake.NewCluster(kfake.NumBrokers(1), kfake.SeedTopics(1, testTopic))
	require.NoError(t, err)
	t.Cleanup(cluster.Close)
	return cluster.ListenAddrs()
}

func TestKafkaSink_ProducesEvent(t *testing.T) {
	brokers := newTestCluster(t)
	sink, err := NewKafkaSink(brokers, testTopic)
	require.NoError(t, err)
	t.Cleanup(sink.Close)
	require.Equal(t, "kafka", sink.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sent := Event{
		EventID:      "e1",
		Type:         TypeQuarantined,
		SimulationID: "thermal_20240315_093000",
		Detail:       "empty result",
		Timestamp:    time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Send(ctx, sent))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	record := records[0]
	require.Equal(t, testTopic, record.Topic)
	require.Equal(t, "thermal_20240315_093000", string(record.Key))

	var got Event
	require.NoError(t, json.Unmarshal(record.Value, &got))
	require.Equal(t, sent.EventID, got.EventID)
	require.Equal(t, TypeQuarantined, got.Type)
	require.Equal(t, sent.SimulationID, got.SimulationID)
	require.Equal(t, "empty result", got.Detail)
	require.True(t, sent.Timestamp.Equal(got.Timestamp))
}

func TestNewKafkaSink_RequiresBrokersAndTopic(t *testing.T) {
	_, err := NewKafkaSink(nil, testTopic)
	require.Error(t, err)
	_, err = NewKafkaSink([]string{"localhost:9092"}, "")
	require.Error(t, err)
}
