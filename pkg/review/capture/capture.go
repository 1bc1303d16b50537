package capture

import (
	"strings"

	"transcript-review-be/pkg/store"
)

// Resolve checks raw selection coordinates against the transcript and
// materializes the span they address. Offsets are rune offsets into the
// message content. ok is false when the coordinates do not resolve to a
// usable span; callers treat that as a no-op, not an error.
func Resolve(transcript []store.Message, messageIndex, startOffset, endOffset int) (store.PendingSelection, bool) {
	if messageIndex < 0 || messageIndex >= len(transcript) {
		return store.PendingSelection{}, false
	}
	if startOffset < 0 || endOffset <= startOffset {
		return store.PendingSelection{}, false
	}

	content := []rune(transcript[messageIndex].Content)
	if endOffset > len(content) {
		return store.PendingSelection{}, false
	}

	// The stored text is always derived from the transcript; whatever the
	// client sent alongside the coordinates is ignored.
	text := string(content[startOffset:endOffset])
	if strings.TrimSpace(text) == "" {
		return store.PendingSelection{}, false
	}

	return store.PendingSelection{
		MessageIndex: messageIndex,
		StartOffset:  startOffset,
		EndOffset:    endOffset,
		Text:         text,
	}, true
}
