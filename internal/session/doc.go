// Package session caches authenticated remote clients per instance alias
// and re-runs a failed call once on a fresh session when the failure looks
// like a dead session or a transport glitch.
//
// # Usage
//
//	cache := session.NewCache(session.Config{
//	    TTL:          30 * time.Minute,
//	    DefaultAlias: "dev",
//	}, resolver, remote.NewFactory())
//
//	id, err := session.WithRetry(ctx, cache, "dev",
//	    func(ctx context.Context, c remote.Client) (string, error) {
//	        return c.Create(ctx, "incident", payload)
//	    })
//
// An entry is never mutated after insertion. Expiry and eviction delete it
// and the next Resolve inserts a replacement.
package session
