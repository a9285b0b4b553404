package ringchan_test

import (
	"testing"

	"github.com/srg/hrmon/internal/ringchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForceSendKeepsNewest(t *testing.T) {
	rc := ringchan.New[int](3)

	dropped := 0
	for i := 0; i < 10; i++ {
		if rc.ForceSend(i) {
			dropped++
		}
	}
	rc.Close()

	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}

	assert.Equal(t, []int{7, 8, 9}, got, "newest values MUST survive in order")
	assert.Equal(t, 7, dropped)
	m := rc.GetMetrics()
	assert.EqualValues(t, 10, m.Written)
	assert.EqualValues(t, 7, m.Overwritten)
}

func TestForceSendWithRoom(t *testing.T) {
	rc := ringchan.New[string](2)

	assert.False(t, rc.ForceSend("a"), "ForceSend MUST NOT drop while there is room")
	assert.False(t, rc.ForceSend("b"))
	assert.True(t, rc.ForceSend("c"), "ForceSend MUST report the overwrite on a full buffer")

	require.Equal(t, "b", <-rc.C())
	require.Equal(t, "c", <-rc.C())
	select {
	case v := <-rc.C():
		t.Fatalf("unexpected element %q", v)
	default:
	}
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { ringchan.New[int](0) })
}
