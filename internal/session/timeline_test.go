package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-ai/internal/model"
)

func TestTimelineAppendKeepsCallOrder(t *testing.T) {
	tl := NewTimeline(nil)

	for i := 0; i < 50; i++ {
		sender := model.SenderUser
		if i%2 == 1 {
			sender = model.SenderAssistant
		}
		msg := tl.Append(sender, fmt.Sprintf("m%d", i), nil)
		require.Equal(t, uint64(i+1), msg.Seq)
	}

	all := tl.All()
	require.Len(t, all, 50)
	require.Equal(t, 50, tl.Len())
	for i, msg := range all {
		assert.Equal(t, fmt.Sprintf("m%d", i), msg.Content)
		if i > 0 {
			assert.Less(t, all[i-1].ID, msg.ID, "ids must sort in insertion order")
		}
	}
}

func TestTimelineIDsSortWithFrozenClock(t *testing.T) {
	frozen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tl := NewTimeline(func() time.Time { return frozen })

	a := tl.Append(model.SenderUser, "a", nil)
	b := tl.Append(model.SenderAssistant, "b", nil)

	assert.Less(t, a.ID, b.ID)
	assert.Equal(t, frozen, a.Timestamp)
	assert.Equal(t, frozen, b.Timestamp)
}

func TestTimelineReturnsCopies(t *testing.T) {
	tl := NewTimeline(nil)
	refs := []model.AttachmentRef{{Name: "manual.txt", MediaType: "text/plain", SizeBytes: 3}}
	appended := tl.Append(model.SenderUser, "see attached", refs)

	refs[0].Name = "mutated"
	appended.Attachments[0].Name = "mutated too"
	all := tl.All()
	all[0].Content = "rewritten"

	again := tl.All()
	assert.Equal(t, "see attached", again[0].Content)
	assert.Equal(t, "manual.txt", again[0].Attachments[0].Name)
}

func TestTimelineDistinguishesAbsentAndEmptyAttachments(t *testing.T) {
	tl := NewTimeline(nil)
	tl.Append(model.SenderUser, "hi", []model.AttachmentRef{})
	tl.Append(model.SenderAssistant, "hello", nil)

	all := tl.All()
	assert.NotNil(t, all[0].Attachments)
	assert.Empty(t, all[0].Attachments)
	assert.Nil(t, all[1].Attachments)
}

func TestTimelineRecent(t *testing.T) {
	tl := NewTimeline(nil)
	for i := 0; i < 5; i++ {
		tl.Append(model.SenderUser, fmt.Sprintf("m%d", i), nil)
	}

	recent := tl.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "m3", recent[0].Content)
	assert.Equal(t, "m4", recent[1].Content)
	assert.Len(t, tl.Recent(0), 5)
	assert.Len(t, tl.Recent(10), 5)
}
