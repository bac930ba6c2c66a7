// Package retrieval serves the read patterns over a collection: nearest
// neighbours of a seed item and random samples.
package retrieval
