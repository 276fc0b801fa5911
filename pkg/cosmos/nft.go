package cosmos

import (
	"context"
	"fmt"

	queryv1beta1 "cosmossdk.io/api/cosmos/base/query/v1beta1"
	nftv1beta1 "cosmossdk.io/api/cosmos/nft/v1beta1"
	"google.golang.org/grpc"
)

const methodNFTs = "/cosmos.nft.v1beta1.Query/NFTs"

// ERC721ClassPrefix prefixes the NFT class id minted for a bridged ERC-721 contract.
const ERC721ClassPrefix = "gravityerc721"

// ERC721ClassID returns the x/nft class that mirrors an ERC-721 contract.
func ERC721ClassID(contract string) string {
	return ERC721ClassPrefix + contract
}

// NFT is a cosmos.nft.v1beta1.NFT.
type NFT struct {
	ClassID string
	ID      string
	URI     string
}

// NFTQuerier lists the tokens of a class owned by an account.
type NFTQuerier interface {
	NFTs(ctx context.Context, classID, owner string) ([]NFT, error)
}

var _ NFTQuerier = (*NFTQueryClient)(nil)

// NFTQueryClient wraps the cosmos.nft.v1beta1.Query service.
type NFTQueryClient struct {
	client   nftv1beta1.QueryClient
	pageSize uint64
}

func NewNFTQueryClient(cc grpc.ClientConnInterface) *NFTQueryClient {
	return &NFTQueryClient{client: nftv1beta1.NewQueryClient(cc), pageSize: 100}
}

// NFTs returns every token of classID held by owner across all pages.
func (c *NFTQueryClient) NFTs(ctx context.Context, classID, owner string) ([]NFT, error) {
	return ListPaged(ctx, c.pageSize, func(ctx context.Context, page *queryv1beta1.PageRequest) ([]NFT, *queryv1beta1.PageResponse, error) {
		resp, err := c.client.NFTs(ctx, &nftv1beta1.QueryNFTsRequest{ClassId: classID, Owner: owner, Pagination: page})
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", methodNFTs, err)
		}
		out := make([]NFT, 0, len(resp.GetNfts()))
		for _, n := range resp.GetNfts() {
			out = append(out, NFT{ClassID: n.GetClassId(), ID: n.GetId(), URI: n.GetUri()})
		}
		return out, resp.GetPagination(), nil
	})
}
