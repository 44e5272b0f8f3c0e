package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-ai/internal/model"
)

type countingRecorder struct {
	mu       sync.Mutex
	started  int
	outcomes []string
}

func (r *countingRecorder) CycleStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *countingRecorder) CycleFinished(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *countingRecorder) AttachmentIngested(string) {}
func (r *countingRecorder) AttachmentRejected(string) {}

func (r *countingRecorder) snapshot() (int, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, append([]string(nil), r.outcomes...)
}

func echoDeliver(calls *atomic.Int32) deliverFunc {
	return func(reply string, err error) (model.Message, error) {
		calls.Add(1)
		if err != nil {
			return model.Message{}, err
		}
		return model.Message{Sender: model.SenderAssistant, Content: reply}, nil
	}
}

func TestSchedulerRejectsWhilePending(t *testing.T) {
	gen := newGatedGenerator("ok")
	s := NewScheduler(gen, time.Second)
	var pending atomic.Bool
	var calls atomic.Int32

	first, err := s.RequestResponse(context.Background(), &pending, model.Message{}, GenerateRequest{}, echoDeliver(&calls))
	require.NoError(t, err)
	assert.True(t, pending.Load())

	_, err = s.RequestResponse(context.Background(), &pending, model.Message{}, GenerateRequest{}, echoDeliver(&calls))
	require.ErrorIs(t, err, ErrResponseAlreadyPending)

	close(gen.release)
	msg, err := waitTurn(t, first)
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.False(t, pending.Load())
	assert.EqualValues(t, 1, calls.Load())
}

func TestSchedulerRecordsOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		gen     Generator
		outcome string
		wantErr bool
	}{
		{
			name:    "success",
			gen:     GeneratorFunc(func(context.Context, GenerateRequest) (string, error) { return "hi", nil }),
			outcome: OutcomeSuccess,
		},
		{
			name:    "failure",
			gen:     GeneratorFunc(func(context.Context, GenerateRequest) (string, error) { return "", errors.New("bad gateway") }),
			outcome: OutcomeFailure,
			wantErr: true,
		},
		{
			name: "timeout",
			gen: GeneratorFunc(func(ctx context.Context, _ GenerateRequest) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			}),
			outcome: OutcomeTimeout,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &countingRecorder{}
			s := NewScheduler(tt.gen, 30*time.Millisecond)
			s.recorder = rec
			var pending atomic.Bool
			var calls atomic.Int32

			turn, err := s.RequestResponse(context.Background(), &pending, model.Message{}, GenerateRequest{}, echoDeliver(&calls))
			require.NoError(t, err)
			_, err = waitTurn(t, turn)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrResponseGenerationFailed)
			} else {
				require.NoError(t, err)
			}

			started, outcomes := rec.snapshot()
			assert.Equal(t, 1, started)
			assert.Equal(t, []string{tt.outcome}, outcomes)
			assert.EqualValues(t, 1, calls.Load())
			assert.False(t, pending.Load())
		})
	}
}

func TestSchedulerDefaultsTimeout(t *testing.T) {
	s := NewScheduler(newGatedGenerator(""), 0)
	assert.Equal(t, DefaultResponseTimeout, s.timeout)
}

func TestTurnWaitHonoursCallerContext(t *testing.T) {
	turn := newTurn(model.Message{Content: "hi"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := turn.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	select {
	case <-turn.Done():
		t.Fatal("turn resolved without a reply")
	default:
	}

	turn.resolve(model.Message{Content: "reply"}, nil)
	msg, err := turn.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "reply", msg.Content)
}
