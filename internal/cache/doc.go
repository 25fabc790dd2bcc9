/*
Package cache provides a content-addressed in-memory result cache.

Keys are 64-bit xxHash digests of the source text, so identical snippets
share one entry regardless of how often they are submitted. Collisions are
theoretically possible with a non-cryptographic hash; for a dev-tool cache
the risk is accepted.

Entries carry a TTL that is checked lazily on read, never swept proactively.
When the cache is full, the entry with the fewest hits is evicted, oldest
first on ties. Snippets that are rerun repeatedly (iterative development)
therefore survive one-off pastes.

All operations are pure in-memory map manipulation and cannot fail.
*/
package cache
