package serial

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Request is one exchange of a batch.
type Request struct {
	Device  string
	Payload []byte
}

// Result pairs a Request with its outcome.
type Result struct {
	Request  Request
	Response *Response
	Err      error
}

// ExchangeAll runs reqs with at most limit exchanges in flight; limit <= 0
// means no limit. Requests for the same device run one at a time. Results
// are returned in request order; per-request failures are reported in
// Result.Err and the returned error is only set when ctx ends first.
func (p *Pool) ExchangeAll(ctx context.Context, reqs []Request, limit int) ([]Result, error) {
	results := make([]Result, len(reqs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		results[i].Request = req
		g.Go(func() error {
			resp, err := p.Exchange(ctx, req.Device, req.Payload)
			results[i].Response = resp
			results[i].Err = err
			return nil
		})
	}
	g.Wait()

	return results, ctx.Err()
}
