// Package extract turns uploaded document bytes into plain text.
package extract

import "context"

// Extractor is the boundary to the document text-extraction routine. The
// ingestion pipeline treats it as a black box: any error means the document
// could not be read at all.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (string, error)
}
