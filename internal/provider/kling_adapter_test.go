package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/swapstudio/swap-studio-api/internal/kling"
)

// mockKlingClient is a simple mock for testing KlingAdapter.
type mockKlingClient struct {
	mock.Mock
}

func (m *mockKlingClient) CreateMotionTask(ctx context.Context, req kling.MotionTaskRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockKlingClient) GetTask(ctx context.Context, taskID string) (kling.TaskStatus, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(kling.TaskStatus), args.Error(1)
}

func TestKlingAdapter_Submit(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockKlingClient{}
	adapter := NewKlingAdapter(mockClient)

	mockClient.On("CreateMotionTask", ctx, mock.MatchedBy(func(req kling.MotionTaskRequest) bool {
		return req.ImageBase64 == base64.StdEncoding.EncodeToString([]byte("image-bytes")) &&
			req.VideoBase64 == base64.StdEncoding.EncodeToString([]byte("video-bytes")) &&
			req.Prompt == "dance" &&
			req.Mode == "pro"
	})).Return("task-55", nil)

	ref, err := adapter.Submit(ctx, SubmitRequest{
		Mode:    ModeMotionControl,
		Quality: QualityPro,
		Prompt:  "dance",
		Video:   Media{Data: []byte("video-bytes"), MIME: "video/mp4"},
		Image:   Media{Data: []byte("image-bytes"), MIME: "image/png"},
	})
	require.NoError(t, err)
	assert.Equal(t, "task-55", ref)
	mockClient.AssertExpectations(t)
}

func TestKlingAdapter_Submit_UnsupportedMode(t *testing.T) {
	adapter := NewKlingAdapter(&mockKlingClient{})

	_, err := adapter.Submit(context.Background(), SubmitRequest{Mode: ModeLipSync})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}

func TestKlingAdapter_Submit_Error(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockKlingClient{}
	adapter := NewKlingAdapter(mockClient)

	mockClient.On("CreateMotionTask", ctx, mock.Anything).
		Return("", errors.New("quota exceeded"))

	_, err := adapter.Submit(ctx, SubmitRequest{Mode: ModeMotionControl})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestKlingAdapter_Poll_StatusMapping(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		task     kling.TaskStatus
		expected PollResult
	}{
		{
			name:     "submitted maps to pending",
			task:     kling.TaskStatus{Status: kling.StatusSubmitted},
			expected: PollResult{Status: StatusPending, Progress: ProgressUnreported},
		},
		{
			name:     "processing maps to processing",
			task:     kling.TaskStatus{Status: kling.StatusProcessing},
			expected: PollResult{Status: StatusProcessing, Progress: ProgressUnreported},
		},
		{
			name:     "unknown maps to processing",
			task:     kling.TaskStatus{Status: kling.Status("warming_up")},
			expected: PollResult{Status: StatusProcessing, Progress: ProgressUnreported},
		},
		{
			name:     "succeed with video",
			task:     kling.TaskStatus{Status: kling.StatusSucceed, VideoURL: "https://out/kling.mp4"},
			expected: PollResult{Status: StatusSucceeded, Progress: 100, OutputURL: "https://out/kling.mp4"},
		},
		{
			name:     "completed with video",
			task:     kling.TaskStatus{Status: kling.StatusCompleted, VideoURL: "https://out/kling.mp4"},
			expected: PollResult{Status: StatusSucceeded, Progress: 100, OutputURL: "https://out/kling.mp4"},
		},
		{
			name:     "succeed without video fails",
			task:     kling.TaskStatus{Status: kling.StatusSucceed},
			expected: PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: "no video url in completed task"},
		},
		{
			name:     "failed carries message",
			task:     kling.TaskStatus{Status: kling.StatusFailed, Message: "content policy"},
			expected: PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: "content policy"},
		},
		{
			name:     "error without message gets default",
			task:     kling.TaskStatus{Status: kling.StatusError},
			expected: PollResult{Status: StatusFailed, Progress: ProgressUnreported, Error: "task failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockClient := &mockKlingClient{}
			adapter := NewKlingAdapter(mockClient)
			mockClient.On("GetTask", ctx, "task-1").Return(tt.task, nil)

			got, err := adapter.Poll(ctx, "task-1")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			mockClient.AssertExpectations(t)
		})
	}
}

func TestKlingAdapter_Poll_Error(t *testing.T) {
	ctx := context.Background()
	mockClient := &mockKlingClient{}
	adapter := NewKlingAdapter(mockClient)

	mockClient.On("GetTask", ctx, "task-1").
		Return(kling.TaskStatus{}, errors.New("timeout"))

	_, err := adapter.Poll(ctx, "task-1")
	require.Error(t, err)
}

func TestKlingAdapter_Cancel_NoOp(t *testing.T) {
	mockClient := &mockKlingClient{}
	adapter := NewKlingAdapter(mockClient)

	require.NoError(t, adapter.Cancel(context.Background(), "task-1"))
	mockClient.AssertNotCalled(t, "GetTask", mock.Anything, mock.Anything)
}
