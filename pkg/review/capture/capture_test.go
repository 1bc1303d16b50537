package capture

import (
	"testing"

	"transcript-review-be/pkg/store"
)

func testTranscript() []store.Message {
	return []store.Message{
		{Role: "user", Content: "I want my money back right now."},
		{Role: "assistant", Content: "I have issued a full refund, no questions asked."},
		{Role: "user", Content: "   "},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		messageIndex int
		startOffset  int
		endOffset    int
		wantOk       bool
		wantText     string
	}{
		{
			name:         "valid span",
			messageIndex: 1,
			startOffset:  7,
			endOffset:    27,
			wantOk:       true,
			wantText:     "issued a full refund",
		},
		{
			name:         "whole message",
			messageIndex: 0,
			startOffset:  0,
			endOffset:    31,
			wantOk:       true,
			wantText:     "I want my money back right now.",
		},
		{
			name:         "message index negative",
			messageIndex: -1,
			startOffset:  0,
			endOffset:    5,
			wantOk:       false,
		},
		{
			name:         "message index past end",
			messageIndex: 3,
			startOffset:  0,
			endOffset:    5,
			wantOk:       false,
		},
		{
			name:         "start offset negative",
			messageIndex: 0,
			startOffset:  -2,
			endOffset:    5,
			wantOk:       false,
		},
		{
			name:         "end before start",
			messageIndex: 0,
			startOffset:  10,
			endOffset:    4,
			wantOk:       false,
		},
		{
			name:         "zero width span",
			messageIndex: 0,
			startOffset:  4,
			endOffset:    4,
			wantOk:       false,
		},
		{
			name:         "end offset past message",
			messageIndex: 0,
			startOffset:  0,
			endOffset:    500,
			wantOk:       false,
		},
		{
			name:         "whitespace only span",
			messageIndex: 2,
			startOffset:  0,
			endOffset:    3,
			wantOk:       false,
		},
	}

	transcript := testTranscript()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, ok := Resolve(transcript, tt.messageIndex, tt.startOffset, tt.endOffset)

			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !tt.wantOk {
				return
			}

			if sel.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", sel.Text, tt.wantText)
			}
			if sel.MessageIndex != tt.messageIndex {
				t.Errorf("MessageIndex = %d, want %d", sel.MessageIndex, tt.messageIndex)
			}
			if sel.StartOffset != tt.startOffset || sel.EndOffset != tt.endOffset {
				t.Errorf("Offsets = %d..%d, want %d..%d", sel.StartOffset, sel.EndOffset, tt.startOffset, tt.endOffset)
			}
		})
	}
}

func TestResolveEmptyTranscript(t *testing.T) {
	// A session bound to nothing has an empty transcript, so every capture
	// must fall out as a no-op.
	_, ok := Resolve(nil, 0, 0, 5)
	if ok {
		t.Error("Resolve on empty transcript should not resolve")
	}
}

func TestResolveRuneOffsets(t *testing.T) {
	transcript := []store.Message{
		{Role: "assistant", Content: "prix: 42€ au total"},
	}

	// Offsets count runes, not bytes. "42€" spans runes 6..9.
	sel, ok := Resolve(transcript, 0, 6, 9)
	if !ok {
		t.Fatal("expected span to resolve")
	}
	if sel.Text != "42€" {
		t.Errorf("Text = %q, want %q", sel.Text, "42€")
	}

	// Past the rune length (18 runes) even though the byte length is larger.
	if _, ok := Resolve(transcript, 0, 0, 19); ok {
		t.Error("span past rune length should not resolve")
	}
}

func TestResolveIgnoresClientText(t *testing.T) {
	transcript := testTranscript()

	sel, ok := Resolve(transcript, 0, 0, 6)
	if !ok {
		t.Fatal("expected span to resolve")
	}
	// The resolved text comes from the stored transcript only.
	if sel.Text != "I want" {
		t.Errorf("Text = %q, want %q", sel.Text, "I want")
	}
}
