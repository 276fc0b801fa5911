package cosmos

import (
	"context"

	queryv1beta1 "cosmossdk.io/api/cosmos/base/query/v1beta1"
)

// ListPaged calls fetch for successive pages until the node returns an empty next key. Each
// request carries the key from the previous response, so pages are read in order.
func ListPaged[T any](
	ctx context.Context,
	limit uint64,
	fetch func(ctx context.Context, page *queryv1beta1.PageRequest) ([]T, *queryv1beta1.PageResponse, error),
) ([]T, error) {
	var out []T
	var key []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, page, err := fetch(ctx, &queryv1beta1.PageRequest{Key: key, Limit: limit})
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if page == nil || len(page.NextKey) == 0 {
			return out, nil
		}
		key = page.NextKey
	}
}
