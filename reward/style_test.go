package reward

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoHedging(t *testing.T) {
	assert.Equal(t, -0.3, NoHedging(Sample{Completion: "I think the answer is 42."}))
	assert.Equal(t, -0.3, NoHedging(Sample{Completion: "It could be Tuesday, perhaps."}))
	assert.Equal(t, 0.0, NoHedging(Sample{Completion: "The answer is 42."}))
}

func TestNoApology(t *testing.T) {
	assert.Equal(t, -0.2, NoApology(Sample{Completion: "Sorry, I missed that."}))
	assert.Equal(t, -0.2, NoApology(Sample{Completion: "Unfortunately the part is backordered."}))
	assert.Equal(t, 0.0, NoApology(Sample{Completion: "The part arrives Friday."}))
}

func TestNoRepetition(t *testing.T) {
	repeated := "We can do that. We can do that. We can do that. Call us today."
	assert.Equal(t, -0.5, NoRepetition(Sample{Completion: repeated}))

	varied := "We can do that. Our crew starts Monday. Call us to confirm."
	assert.Equal(t, 0.0, NoRepetition(Sample{Completion: varied}))

	// A single sentence is never penalized.
	assert.Equal(t, 0.0, NoRepetition(Sample{Completion: "One sentence only."}))
}

func TestBrevity(t *testing.T) {
	short := "Yes, we can start Monday."
	assert.Equal(t, 0.5, Brevity(Sample{Completion: short}))

	medium := strings.Repeat("word ", 60)
	assert.Equal(t, 0.2, Brevity(Sample{Completion: medium}))

	long := strings.Repeat("word ", 120)
	assert.Equal(t, 0.0, Brevity(Sample{Completion: long}))

	rambling := strings.Repeat("word ", 200)
	assert.Equal(t, -0.3, Brevity(Sample{Completion: rambling}))
}

func TestSpeakable(t *testing.T) {
	assert.Equal(t, 0.0, Speakable(Sample{Completion: "We open at nine tomorrow."}))

	assert.InDelta(t, -0.2, Speakable(Sample{Completion: "Our *best* crew is free."}), 1e-9)
	assert.InDelta(t, -0.2, Speakable(Sample{Completion: "See https://example.com for details."}), 1e-9)
	assert.InDelta(t, -0.2, Speakable(Sample{Completion: "Great news \U0001F389 we can start."}), 1e-9)

	multi := "Check https://example.com\n- first option\n- second option"
	assert.InDelta(t, -0.4, Speakable(Sample{Completion: multi}), 1e-9)
}
