package cosmos

import (
	"context"
	"fmt"

	txv1beta1 "cosmossdk.io/api/cosmos/tx/v1beta1"
	"google.golang.org/grpc"

	"github.com/canopy-network/bridgewatch/pkg/gravity/types"
	"github.com/canopy-network/bridgewatch/pkg/wire"
)

const methodBroadcastTx = "/cosmos.tx.v1beta1.Service/BroadcastTx"

// Coin is a fee amount.
type Coin struct {
	Denom  string
	Amount string
}

// TxResponse is the node's receipt for a broadcast transaction.
type TxResponse struct {
	Height    int64
	TxHash    string
	Codespace string
	Code      uint32
	RawLog    string
}

// Signer builds and signs a raw transaction. Key storage lives outside this module.
type Signer interface {
	// Address is the bech32 account that pays for and signs the transaction.
	Address() string
	// SignTx returns encoded cosmos.tx.v1beta1.TxRaw bytes carrying msgs.
	SignTx(ctx context.Context, msgs []*wire.Any, fee Coin) ([]byte, error)
}

// EvidenceBroadcaster submits bad-signature evidence to the slashing endpoint.
type EvidenceBroadcaster interface {
	SubmitBadSignatureEvidence(ctx context.Context, msg *types.MsgSubmitBadSignatureEvidence, fee Coin) (*TxResponse, error)
}

var _ EvidenceBroadcaster = (*TxClient)(nil)

// TxClient broadcasts signed transactions through cosmos.tx.v1beta1.Service.
type TxClient struct {
	client txv1beta1.ServiceClient
	signer Signer
}

func NewTxClient(cc grpc.ClientConnInterface, signer Signer) *TxClient {
	return &TxClient{client: txv1beta1.NewServiceClient(cc), signer: signer}
}

// SubmitBadSignatureEvidence signs msg with the client's signer and broadcasts it in sync mode.
// A non-zero response code is returned as an error alongside the receipt.
func (c *TxClient) SubmitBadSignatureEvidence(ctx context.Context, msg *types.MsgSubmitBadSignatureEvidence, fee Coin) (*TxResponse, error) {
	if msg.Sender == "" {
		msg.Sender = c.signer.Address()
	}
	packed, err := wire.PackAny(types.MsgSubmitBadSignatureEvidenceTypeURL, msg)
	if err != nil {
		return nil, err
	}
	raw, err := c.signer.SignTx(ctx, []*wire.Any{packed}, fee)
	if err != nil {
		return nil, fmt.Errorf("sign evidence tx: %w", err)
	}
	resp, err := c.client.BroadcastTx(ctx, &txv1beta1.BroadcastTxRequest{TxBytes: raw, Mode: txv1beta1.BroadcastMode_BROADCAST_MODE_SYNC})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", methodBroadcastTx, err)
	}
	tx := resp.GetTxResponse()
	if tx == nil {
		return nil, fmt.Errorf("broadcast evidence: empty tx response")
	}
	receipt := &TxResponse{
		Height:    tx.GetHeight(),
		TxHash:    tx.GetTxhash(),
		Codespace: tx.GetCodespace(),
		Code:      tx.GetCode(),
		RawLog:    tx.GetRawLog(),
	}
	if receipt.Code != 0 {
		return receipt, fmt.Errorf("evidence tx %s failed with %s/%d: %s",
			receipt.TxHash, receipt.Codespace, receipt.Code, receipt.RawLog)
	}
	return receipt, nil
}
