// Package stunutil checks that a peer's control port is reachable by
// sending it a STUN binding request.
package stunutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pion/stun/v3"

	"meshctl/internal/addrutil"
)

const (
	NATTypeUnknown          = "unknown"
	NATTypeSymmetric        = "symmetric"
	NATTypeConeOrRestricted = "cone_or_restricted"
)

// Result is one successful probe.
type Result struct {
	Peer   string
	Mapped string // our address as seen by the peer
	RTT    time.Duration
}

// Probe sends a binding request to every peer and classifies our NAT mapping
// by comparing the reflexive addresses they report.
func Probe(ctx context.Context, peers []string, defaultPort int, timeout time.Duration) ([]Result, string, error) {
	if len(peers) == 0 {
		return nil, NATTypeUnknown, fmt.Errorf("no peers provided")
	}

	results := make([]Result, 0, len(peers))
	var lastErr error
	for _, peer := range peers {
		res, err := ProbePeer(ctx, peer, defaultPort, timeout)
		if err != nil {
			lastErr = err
			continue
		}
		results = append(results, res)
	}

	if len(results) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("STUN probe failed")
		}
		return nil, NATTypeUnknown, lastErr
	}

	mapped := make([]string, len(results))
	for i, r := range results {
		mapped[i] = r.Mapped
	}
	return results, Classify(mapped), nil
}

// Classify infers NAT type by comparing mapped addresses from multiple peers.
func Classify(addrs []string) string {
	if len(addrs) < 2 {
		return NATTypeUnknown
	}
	first := addrs[0]
	symmetric := false
	for _, addr := range addrs[1:] {
		if addr != first {
			symmetric = true
			break
		}
	}
	if symmetric {
		return NATTypeSymmetric
	}
	return NATTypeConeOrRestricted
}

// ProbePeer sends one binding request to peer.
func ProbePeer(ctx context.Context, peer string, defaultPort int, timeout time.Duration) (Result, error) {
	endpoint, err := addrutil.Endpoint(strings.TrimPrefix(strings.TrimSpace(peer), "stun:"), defaultPort)
	if err != nil {
		return Result{}, err
	}

	uri, err := stun.ParseURI("stun:" + endpoint)
	if err != nil {
		return Result{}, err
	}

	client, err := stun.DialURI(uri, &stun.DialConfig{})
	if err != nil {
		return Result{}, err
	}
	defer client.Close()

	msg := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	result := make(chan stun.XORMappedAddress, 1)
	fail := make(chan error, 1)

	start := time.Now()
	go func() {
		var addr stun.XORMappedAddress
		err := client.Do(msg, func(res stun.Event) {
			if res.Error != nil {
				fail <- res.Error
				return
			}
			if err := addr.GetFrom(res.Message); err != nil {
				fail <- err
				return
			}
			result <- addr
		})
		if err != nil {
			fail <- err
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case addr := <-result:
		return Result{Peer: endpoint, Mapped: addr.String(), RTT: time.Since(start)}, nil
	case err := <-fail:
		return Result{}, err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
