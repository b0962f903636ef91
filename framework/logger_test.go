package framework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func messages(output CapturedOutput) []string {
	var ret []string
	for _, m := range output {
		ret = append(ret, m.Message)
	}
	return ret
}

func TestCapturingLogger(t *testing.T) {
	var l CapturingLogger
	l.Printf("a=%d", 1)
	l.Println("b", 2)
	assert.Equal(t, []string{"a=1", "b 2"}, messages(l.Output()))
}

func TestCapturingLoggerChildReceivesOutputWhileAttached(t *testing.T) {
	var parent, child CapturingLogger
	parent.Printf("before")
	parent.AddChildLogger(&child)
	parent.Printf("during")
	child.Printf("own")
	parent.RemoveChildLogger(&child)
	parent.Printf("after")

	assert.Equal(t, []string{"before", "during", "own"}, messages(child.Output()))
	assert.Equal(t, []string{"before", "after"}, messages(parent.Output()))
}

func TestCapturedOutputToString(t *testing.T) {
	ts := time.Date(2024, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	output := CapturedOutput{{Time: ts, Message: "x"}, {Time: ts, Message: "y"}}
	assert.Equal(t,
		"> [2024-03-04 05:06:07.008] x\n> [2024-03-04 05:06:07.008] y",
		output.ToString("> "))
	assert.Equal(t, "", CapturedOutput(nil).ToString("> "))
}

func TestLoggerWithPrefix(t *testing.T) {
	var l CapturingLogger
	p := LoggerWithPrefix(&l, "[peer] ")
	p.Printf("hello %s", "there")
	p.Println("bye")
	assert.Equal(t, []string{"[peer] hello there", "[peer] bye"}, messages(l.Output()))
}
