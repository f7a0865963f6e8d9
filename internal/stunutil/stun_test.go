package stunutil

import (
	"context"
	"testing"
	"time"

	"meshctl/internal/channel"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	if got := Classify([]string{"1.2.3.4:1"}); got != NATTypeUnknown {
		t.Fatalf("got=%q", got)
	}
	if got := Classify([]string{"1.2.3.4:1", "1.2.3.4:1"}); got != NATTypeConeOrRestricted {
		t.Fatalf("got=%q", got)
	}
	if got := Classify([]string{"1.2.3.4:1", "1.2.3.4:2"}); got != NATTypeSymmetric {
		t.Fatalf("got=%q", got)
	}
}

func TestProbePeer_ControlSocketAnswers(t *testing.T) {
	t.Parallel()

	ch, err := channel.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ch.Serve(ctx) }()

	res, err := ProbePeer(context.Background(), ch.LocalAddr().String(), channel.DefaultPort, 2*time.Second)
	if err != nil {
		t.Fatalf("ProbePeer: %v", err)
	}
	if res.Mapped == "" || res.RTT <= 0 {
		t.Fatalf("result=%+v", res)
	}
}

func TestProbe_NoPeers(t *testing.T) {
	t.Parallel()

	if _, nat, err := Probe(context.Background(), nil, channel.DefaultPort, time.Second); err == nil || nat != NATTypeUnknown {
		t.Fatalf("nat=%q err=%v", nat, err)
	}
}
