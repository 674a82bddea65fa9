package stream

import (
	"iter"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockEvents adapts a Bedrock response stream into a sequence of raw
// chunk payloads. Non-chunk members are dropped; a stream error is yielded
// once after the event channel closes. The stream is closed when the
// sequence finishes or the consumer stops early.
func BedrockEvents(es *bedrockruntime.InvokeModelWithResponseStreamEventStream) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		defer es.Close()
		for event := range es.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}
			if !yield(chunk.Value.Bytes, nil) {
				return
			}
		}
		if err := es.Err(); err != nil {
			yield(nil, err)
		}
	}
}
