package slip

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nsfjr/slipstack/ipv4"
)

type bufLine struct {
	bytes.Buffer
}

func TestAggregatorSendRoutesByNextHop(t *testing.T) {
	agg := NewAggregator(nil, nil)
	hopA := ipv4.Addr{10, 0, 0, 1}
	hopB := ipv4.Addr{10, 0, 0, 2}
	lineA := &bufLine{}
	lineB := &bufLine{}
	agg.RegisterReceiver(hopA, lineA)
	agg.RegisterReceiver(hopB, lineB)

	require.NoError(t, agg.Send([]byte{1, 2, 3}, hopB))
	require.Zero(t, lineA.Len(), "lineA got a write, want none")
	require.Equal(t, Encode([]byte{1, 2, 3}), lineB.Bytes())
}

func TestAggregatorSendUnknownNextHopErrors(t *testing.T) {
	agg := NewAggregator(nil, nil)
	err := agg.Send([]byte{1}, ipv4.Addr{1, 2, 3, 4})
	require.Error(t, err, "expected an error for an unknown next-hop")
}

func TestAggregatorDispatchesAnyLinkToSharedCallback(t *testing.T) {
	var got []byte
	agg := NewAggregator(func(datagram []byte) {
		got = append([]byte(nil), datagram...)
	}, nil)
	hopA := ipv4.Addr{10, 0, 0, 1}
	link := agg.RegisterReceiver(hopA, &bufLine{})

	datagram := []byte{9, 9, 9}
	link.Feed(Encode(datagram))

	require.Equal(t, datagram, got)
}
