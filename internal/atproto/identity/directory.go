// Package identity provides cached directory lookups for external
// AT Protocol identities. Resolution results are read-mostly and cheap to
// re-fetch, so a process-local TTL cache sits in front of the network
// client. Credentials are never cached here.
package identity

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"Skybridge/internal/atproto/bsky"
)

// Directory resolves external handles and profiles.
// This is the read-only subset of the protocol client that identity
// resolution needs.
type Directory interface {
	ResolveHandle(ctx context.Context, handle string) (did string, err error)
	GetProfile(ctx context.Context, actor string) (*bsky.Profile, error)
}

// cachingDirectory caches positive resolutions with a TTL. Negative
// results and transport failures are never cached: a handle that does not
// exist now may exist on the next attempt, and an unreachable directory
// should not poison lookups.
type cachingDirectory struct {
	client bsky.Client
	dids   *ttlcache.Cache[string, string]
	prof   *ttlcache.Cache[string, *bsky.Profile]
}

// Ensure cachingDirectory implements Directory.
var _ Directory = (*cachingDirectory)(nil)

// NewCachingDirectory wraps the protocol client with a TTL cache.
// A zero ttl disables expiry-based reuse entirely (every call hits the
// network), which is mainly useful in tests.
func NewCachingDirectory(client bsky.Client, ttl time.Duration) Directory {
	d := &cachingDirectory{
		client: client,
		dids: ttlcache.New(
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		prof: ttlcache.New(
			ttlcache.WithTTL[string, *bsky.Profile](ttl),
			ttlcache.WithDisableTouchOnHit[string, *bsky.Profile](),
		),
	}

	// Background eviction of expired entries.
	go d.dids.Start()
	go d.prof.Start()

	return d
}

func (d *cachingDirectory) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if item := d.dids.Get(handle); item != nil {
		return item.Value(), nil
	}

	did, err := d.client.ResolveHandle(ctx, handle)
	if err != nil {
		return "", err
	}

	d.dids.Set(handle, did, ttlcache.DefaultTTL)
	return did, nil
}

func (d *cachingDirectory) GetProfile(ctx context.Context, actor string) (*bsky.Profile, error) {
	if item := d.prof.Get(actor); item != nil {
		return item.Value(), nil
	}

	profile, err := d.client.GetProfile(ctx, actor)
	if err != nil {
		return nil, err
	}

	// Cache under both keys so a follow-up lookup by DID or handle hits.
	d.prof.Set(actor, profile, ttlcache.DefaultTTL)
	if profile.DID != actor {
		d.prof.Set(profile.DID, profile, ttlcache.DefaultTTL)
	}
	if profile.Handle != "" && profile.Handle != actor {
		d.prof.Set(profile.Handle, profile, ttlcache.DefaultTTL)
	}

	return profile, nil
}
