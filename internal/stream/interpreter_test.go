package stream

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/llm"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Add(d time.Duration) { c.now = c.now.Add(d) }

func newTestInterpreter(target Target) (*Interpreter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	in := New(Options{
		LoopThreshold:   3,
		LoopWindow:      50,
		ThinkingTimeout: 120 * time.Second,
		Clock:           clock.Now,
	}, target)
	return in, clock
}

func feed(in *Interpreter, chunks ...llm.StreamEvent) []Event {
	var out []Event
	for _, c := range chunks {
		out = append(out, in.Advance(c)...)
	}
	return out
}

func TestInterpreter_LoopAbortsBeforeAnswer(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	fragment := "Let me reconsider the plan. " // 26 characters before the period
	var events []Event
	for i := 0; i < 3; i++ {
		events = append(events, in.Advance(llm.StreamEvent{Thinking: fragment})...)
		require.Equal(t, Thinking, in.Phase(), "aborted early on repetition %d", i+1)
	}
	assert.Len(t, events, 3)

	events = in.Advance(llm.StreamEvent{Thinking: fragment})
	require.Len(t, events, 2)
	assert.IsType(t, ThoughtDelta{}, events[0])
	assert.Equal(t, TextDelta{Text: FallbackText}, events[1])
	assert.Equal(t, Aborted, in.Phase())
	assert.Equal(t, ReasonLoop, in.Reason())
	assert.Contains(t, in.Display(), "Rewrite the whole prompt")

	assert.Nil(t, in.Advance(llm.StreamEvent{Content: "late answer"}))
	assert.NotContains(t, in.Answer(), "late answer")
}

func TestInterpreter_LoopSentenceSplitAcrossChunks(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	for i := 0; i < 3; i++ {
		feed(in,
			llm.StreamEvent{Thinking: "I keep going back to "},
			llm.StreamEvent{Thinking: "the same idea here. "},
		)
	}
	require.Equal(t, Thinking, in.Phase())

	feed(in, llm.StreamEvent{Thinking: "I keep going back to the same idea here!"})
	assert.Equal(t, Aborted, in.Phase())
}

func TestInterpreter_ShortAndDistinctSentencesDoNotLoop(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	for i := 0; i < 10; i++ {
		feed(in, llm.StreamEvent{Thinking: "Hmm. Okay. Right? "})
	}
	for i := 0; i < 10; i++ {
		feed(in, llm.StreamEvent{Thinking: "Considering option number " + strings.Repeat("x", i+1) + ". "})
	}
	assert.Equal(t, Thinking, in.Phase())
}

func TestInterpreter_LoopIgnoredOnceAnswering(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	feed(in, llm.StreamEvent{Content: "Here is the plan."})
	for i := 0; i < 6; i++ {
		feed(in, llm.StreamEvent{Thinking: "Let me reconsider the plan. "})
	}
	assert.Equal(t, Thinking, in.Phase())
	assert.Empty(t, in.Reason())
}

func TestInterpreter_Timeout(t *testing.T) {
	in, clock := newTestInterpreter(Target{})

	clock.Add(10 * time.Second)
	events := feed(in, llm.StreamEvent{Thinking: "hmm"})
	assert.Equal(t, []Event{ThoughtDelta{Text: "hmm"}}, events)

	clock.Add(111 * time.Second)
	events = feed(in, llm.StreamEvent{Thinking: "still"})
	require.Len(t, events, 2)
	assert.Contains(t, events[0].(ThoughtDelta).Text, "TIMEOUT")
	assert.Contains(t, events[0].(ThoughtDelta).Text, "121s")
	assert.Equal(t, ReasonTimeout, in.Reason())
}

func TestInterpreter_TickAbortsStalledStream(t *testing.T) {
	in, clock := newTestInterpreter(Target{})

	assert.Nil(t, in.Tick(clock.now.Add(119*time.Second)))
	events := in.Tick(clock.now.Add(121 * time.Second))
	require.Len(t, events, 2)
	assert.Equal(t, Aborted, in.Phase())

	assert.Nil(t, in.Tick(clock.now.Add(500*time.Second)))
}

func TestInterpreter_NoTimeoutAfterAnswer(t *testing.T) {
	in, clock := newTestInterpreter(Target{})

	feed(in, llm.StreamEvent{Content: "Answer starts"})
	clock.Add(10 * time.Minute)
	assert.Nil(t, in.Tick(clock.now))
	feed(in, llm.StreamEvent{Thinking: "late thought"})
	assert.NotEqual(t, Aborted, in.Phase())
}

func TestInterpreter_LegacyThinkMarkers(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	events := feed(in,
		llm.StreamEvent{Content: "<think>plan the "},
		llm.StreamEvent{Content: "edit</think>Here it is."},
	)

	assert.Equal(t, []Event{
		ThoughtDelta{Text: "plan the "},
		ThoughtDelta{Text: "edit"},
		TextDelta{Text: "Here it is."},
	}, events)
	assert.Equal(t, "plan the edit", in.Thinking())
	assert.Equal(t, "Here it is.", in.Answer())
	assert.Equal(t, Answering, in.Phase())
}

func TestInterpreter_LegacyMarkersSplitAcrossChunks(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	feed(in, llm.StreamEvent{Content: "<thi"})
	assert.False(t, in.Answered())
	assert.Empty(t, in.Answer())

	feed(in,
		llm.StreamEvent{Content: "nk>secret plan"},
		llm.StreamEvent{Content: "</th"},
		llm.StreamEvent{Content: "ink>Here it is."},
	)

	assert.Equal(t, "secret plan", in.Thinking())
	assert.Equal(t, "Here it is.", in.Answer())
	assert.Equal(t, "Here it is.", in.Display())
}

func TestInterpreter_LoopDetectedAfterSplitMarker(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	feed(in, llm.StreamEvent{Content: "<th"}, llm.StreamEvent{Content: "ink>"})
	require.False(t, in.Answered())

	fragment := "Let me reconsider the plan. "
	for i := 0; i < 4; i++ {
		feed(in, llm.StreamEvent{Content: fragment})
	}
	assert.Equal(t, Aborted, in.Phase())
	assert.Equal(t, ReasonLoop, in.Reason())
}

func TestInterpreter_HeldFragmentReleasedAtEnd(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	events := feed(in, llm.StreamEvent{Content: "compare a <th"})
	assert.Equal(t, []Event{TextDelta{Text: "compare a "}}, events)

	events = feed(in, llm.StreamEvent{Done: true})
	assert.Equal(t, []Event{TextDelta{Text: "<th"}}, events)
	assert.Equal(t, "compare a <th", in.Answer())
	assert.Equal(t, Done, in.Phase())

	other, _ := newTestInterpreter(Target{})
	feed(other, llm.StreamEvent{Content: "x <"})
	assert.Equal(t, []Event{TextDelta{Text: "<"}}, other.Finish())
	assert.Equal(t, "x <", other.Answer())
}

func TestInterpreter_LegacyMarkersInOneChunk(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	events := feed(in, llm.StreamEvent{Content: "pre<think>a</think>b"})
	assert.Equal(t, []Event{
		TextDelta{Text: "pre"},
		ThoughtDelta{Text: "a"},
		TextDelta{Text: "b"},
	}, events)
}

func TestInterpreter_LegacyThinkingDoesNotCountAsAnswer(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	feed(in, llm.StreamEvent{Content: "<think>"})
	for i := 0; i < 4; i++ {
		feed(in, llm.StreamEvent{Content: "Let me reconsider the plan. "})
	}
	assert.Equal(t, Aborted, in.Phase())
}

func TestInterpreter_DedicatedFieldTakesPrecedence(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	events := feed(in,
		llm.StreamEvent{Thinking: "reasoning"},
		llm.StreamEvent{Content: "a <think> tag in prose"},
	)
	assert.Equal(t, []Event{
		ThoughtDelta{Text: "reasoning"},
		TextDelta{Text: "a <think> tag in prose"},
	}, events)
}

func TestInterpreter_CommandSplitAcrossChunks(t *testing.T) {
	in, _ := newTestInterpreter(Target{Document: "line one"})

	chunks := []string{"Sure. <SCRATCHPAD_APP", "END>\nNew line\n</SCRATCH", "PAD_APPEND> done"}
	var found []*command.Command
	for i, c := range chunks {
		for _, ev := range in.Advance(llm.StreamEvent{Content: c}) {
			if cf, ok := ev.(CommandFound); ok {
				found = append(found, cf.Command)
			}
		}
		if i < len(chunks)-1 {
			assert.Nil(t, in.Command())
			assert.NotContains(t, in.Display(), "SCRATCHPAD")
		}
	}

	require.Len(t, found, 1)
	assert.Equal(t, command.Append{NewContent: "New line"}, found[0].Op)
	assert.Same(t, found[0], in.Command())
	assert.False(t, found[0].TargetsSnippet())
	assert.Equal(t, "Sure.  done", in.Display())
}

func TestInterpreter_LaterCommandReplacesEarlier(t *testing.T) {
	in, _ := newTestInterpreter(Target{Document: "a\nb"})

	feed(in,
		llm.StreamEvent{Content: "<SCRATCHPAD_APPEND>x</SCRATCHPAD_APPEND>"},
		llm.StreamEvent{Content: "<SCRATCHPAD_UPDATE>y</SCRATCHPAD_UPDATE>"},
	)
	require.NotNil(t, in.Command())
	assert.Equal(t, command.Replace{NewContent: "y"}, in.Command().Op)
	assert.Equal(t, "a\nb", in.Command().Original)
}

func TestInterpreter_SnippetTarget(t *testing.T) {
	sel := &command.Selection{Text: "a\nb\nc", Range: command.Range{Start: 10, End: 15}}
	in, _ := newTestInterpreter(Target{Document: strings.Repeat("z", 10) + "a\nb\nc", Selection: sel})

	feed(in, llm.StreamEvent{Content: `<EDIT_LINES start="2" end="2">B</EDIT_LINES>`})

	cmd := in.Command()
	require.NotNil(t, cmd)
	assert.True(t, cmd.TargetsSnippet())
	assert.Equal(t, &command.Range{Start: 10, End: 15}, cmd.Snippet)
	assert.Equal(t, "b", cmd.Original)
}

func TestInterpreter_DocumentSnapshot(t *testing.T) {
	in, _ := newTestInterpreter(Target{Document: "one\ntwo\nthree"})

	feed(in, llm.StreamEvent{Content: `<EDIT_LINES start="2" end="3"></EDIT_LINES>`})
	require.NotNil(t, in.Command())
	assert.Equal(t, "two\nthree", in.Command().Original)
	assert.Equal(t, "Delete lines 2-3", in.Command().Describe())
}

func TestInterpreter_TokenCount(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	usage := &llm.Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150}
	events := feed(in,
		llm.StreamEvent{Content: "ok"},
		llm.StreamEvent{Done: true, Usage: usage},
	)

	assert.Equal(t, TokenCount{Usage: *usage}, events[len(events)-1])
	assert.Equal(t, Done, in.Phase())
	assert.Equal(t, usage, in.Usage())
}

func TestInterpreter_UnterminatedCommandDiscardedAtEnd(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	feed(in, llm.StreamEvent{Content: "Working <SCRATCHPAD_UPDATE>half"})
	assert.Equal(t, "Working", in.Display())
	in.Finish()

	assert.Equal(t, Done, in.Phase())
	assert.Nil(t, in.Command())
	assert.Equal(t, "Working <SCRATCHPAD_UPDATE>half", in.Display())
}

func TestInterpreter_OrderPreserved(t *testing.T) {
	in, _ := newTestInterpreter(Target{})

	events := feed(in,
		llm.StreamEvent{Thinking: "t1"},
		llm.StreamEvent{Content: "a1"},
		llm.StreamEvent{Thinking: "t2"},
		llm.StreamEvent{Content: "a2"},
	)
	assert.Equal(t, []Event{
		ThoughtDelta{Text: "t1"},
		TextDelta{Text: "a1"},
		ThoughtDelta{Text: "t2"},
		TextDelta{Text: "a2"},
	}, events)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "answering", Answering.String())
	assert.True(t, Aborted.Terminal())
	assert.False(t, Thinking.Terminal())
}
