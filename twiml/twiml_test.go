package twiml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderGreeting(t *testing.T) {
	out, err := Render([]Directive{
		Speak{Text: "Hello there.", Voice: "alice"},
		Record{
			Action:         "https://example.com/recording",
			StatusCallback: "https://example.com/recording-status",
			MaxDuration:    30,
			SilenceTimeout: 5,
		},
	})
	require.NoError(t, err)

	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, `<Say voice="alice">Hello there.</Say>`)
	assert.Contains(t, out, `action="https://example.com/recording"`)
	assert.Contains(t, out, `maxLength="30"`)
	assert.Contains(t, out, `timeout="5"`)
	assert.Contains(t, out, `playBeep="true"`)
	assert.Contains(t, out, `trim="trim-silence"`)
	assert.Contains(t, out, `recordingStatusCallback="https://example.com/recording-status"`)
}

func TestRenderReplayTurn(t *testing.T) {
	out, err := Render([]Directive{
		Play{URL: "https://example.com/audio/CA1"},
		Pause{Seconds: 1},
		Speak{Text: "You can ask another question after the beep."},
		Record{Action: "https://example.com/recording", MaxDuration: 30, SilenceTimeout: 5},
	})
	require.NoError(t, err)

	// Order matters: play before pause before the re-prompt.
	playIdx := indexOf(t, out, "<Play>")
	pauseIdx := indexOf(t, out, "<Pause")
	sayIdx := indexOf(t, out, "<Say>")
	assert.Less(t, playIdx, pauseIdx)
	assert.Less(t, pauseIdx, sayIdx)
}

func TestRenderGoodbye(t *testing.T) {
	out, err := Render([]Directive{
		Speak{Text: "I didn't catch that. Goodbye."},
		Hangup{},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "I didn&#39;t catch that. Goodbye.")
	assert.Contains(t, out, "<Hangup>")
}

func TestRenderMessage(t *testing.T) {
	out, err := Render([]Directive{Message{Body: "Hi & welcome"}})
	require.NoError(t, err)
	assert.Contains(t, out, "<Message>Hi &amp; welcome</Message>")
}

func TestMustRenderMatchesRender(t *testing.T) {
	ds := []Directive{Message{Body: "It's 3 PM."}}

	want, err := Render(ds)
	require.NoError(t, err)
	assert.Equal(t, want, MustRender(ds))
}

func TestRenderEmpty(t *testing.T) {
	out, err := Render(nil)
	require.NoError(t, err)
	assert.Contains(t, out, "<Response>")
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	idx := -1
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			idx = i
			break
		}
	}
	require.NotEqual(t, -1, idx, "expected %q in rendered output", sub)
	return idx
}
