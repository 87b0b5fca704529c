package huffman

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// EncodeAll encodes independent inputs in parallel, each with its own tree.
// Results keep the order of inputs. The first failure cancels the remaining
// work and is returned with the index of the failing input.
func (e *Encoder) EncodeAll(ctx context.Context, inputs [][]byte) ([]*Archive, error) {
	out := make([]*Archive, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency(e.config))

	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := e.Encode(input)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Decoder reads archives and reconstructs their inputs, optionally reusing
// parsed trees across archives. A Decoder is safe for concurrent use.
type Decoder struct {
	config Config
	trees  *TreeCache
}

// NewDecoder creates a decoder with the given options.
func NewDecoder(opts ...Option) (*Decoder, error) {
	d := &Decoder{config: newConfig(opts)}
	if d.config.TreeCacheSize > 0 {
		trees, err := NewTreeCache(d.config.TreeCacheSize)
		if err != nil {
			return nil, err
		}
		d.trees = trees
	}
	return d, nil
}

// ReadArchive deserializes one archive from r.
func (d *Decoder) ReadArchive(r io.Reader) (*Archive, error) {
	a := &Archive{}
	if _, err := a.readFrom(r, d.trees); err != nil {
		return nil, err
	}
	return a, nil
}

// DecodeFrom reads one archive from r and returns the decoded input.
func (d *Decoder) DecodeFrom(r io.Reader) ([]byte, error) {
	a, err := d.ReadArchive(r)
	if err != nil {
		return nil, err
	}
	return a.Decode()
}

// DecodeAll decodes serialized archives in parallel. Results keep the order of
// the inputs.
func (d *Decoder) DecodeAll(ctx context.Context, archives [][]byte) ([][]byte, error) {
	out := make([][]byte, len(archives))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency(d.config))

	for i, raw := range archives {
		i, raw := i, raw
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := d.DecodeFrom(bytes.NewReader(raw))
			if err != nil {
				return fmt.Errorf("archive %d: %w", i, err)
			}
			out[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// TreeCache returns the decoder's tree cache, or nil when caching is off.
func (d *Decoder) TreeCache() *TreeCache {
	return d.trees
}
