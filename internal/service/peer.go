package service

import "context"

type peerIPKey struct{}

// WithPeerIP attaches the submitting peer's address for the submission limiter.
func WithPeerIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, peerIPKey{}, ip)
}

// PeerIP returns the address set by WithPeerIP, or "".
func PeerIP(ctx context.Context) string {
	ip, _ := ctx.Value(peerIPKey{}).(string)
	return ip
}
