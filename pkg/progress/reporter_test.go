package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineReporterPrintsEveryN(t *testing.T) {
	var buf bytes.Buffer
	r := NewLineReporter(&buf, 2)
	r.Start(5, "fingerprint library")
	for i := 0; i < 5; i++ {
		r.Add(1)
	}
	r.Finish()

	assert.Equal(t,
		"fingerprint library: starting (5 items)\n"+
			"fingerprint library: [2/5]\n"+
			"fingerprint library: [4/5]\n"+
			"fingerprint library: done (5/5)\n",
		buf.String())
}

func TestNopReporter(t *testing.T) {
	var r Reporter = Nop{}
	r.Start(1, "x")
	r.Add(1)
	r.Finish()
}
