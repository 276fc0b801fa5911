// Package cosmos queries the Cosmos side of the bridge over gRPC and broadcasts evidence
// transactions.
//
// Staking, nft and tx calls use the generated cosmossdk.io/api clients. The gravity.v1 module has no
// published Go API, so its messages are hand-encoded with pkg/wire and sent through
// grpc.ClientConnInterface.Invoke with the wire codec forced on the call.
package cosmos

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/canopy-network/bridgewatch/pkg/logging"
	"github.com/canopy-network/bridgewatch/pkg/retry"
	"github.com/canopy-network/bridgewatch/pkg/wire"
)

// codecName matches the content-subtype Cosmos nodes serve.
const codecName = "proto"

// WireCodec implements grpc/encoding.Codec over pkg/wire messages. It is forced per call rather
// than registered, so it never replaces the process-wide proto codec.
type WireCodec struct{}

func (WireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wire.Marshaler)
	if !ok {
		return nil, fmt.Errorf("wire codec: cannot marshal %T", v)
	}
	bz, err := m.Marshal()
	if err != nil {
		return nil, fmt.Errorf("wire marshal %T: %w", v, err)
	}
	return bz, nil
}

func (WireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(interface{ Unmarshal([]byte) error })
	if !ok {
		return fmt.Errorf("wire codec: cannot unmarshal into %T", v)
	}
	if err := m.Unmarshal(data); err != nil {
		return fmt.Errorf("wire unmarshal %T: %w", v, err)
	}
	return nil
}

func (WireCodec) Name() string { return codecName }

func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, req, resp any) error {
	if err := cc.Invoke(ctx, method, req, resp, grpc.ForceCodec(WireCodec{})); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

// Dial opens a plaintext gRPC connection and waits, with retries, until it is ready.
func Dial(ctx context.Context, addr string, cfg retry.Config, logger *zap.Logger, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	logger = logging.OrNop(logger)
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("cosmos grpc: dial %s: %w", addr, err)
	}
	err = retry.WithBackoff(ctx, cfg, logger, "cosmos grpc connect "+addr, func() error {
		conn.Connect()
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		for {
			state := conn.GetState()
			switch state {
			case connectivity.Ready:
				return nil
			case connectivity.Shutdown:
				return retry.Permanent(fmt.Errorf("connection to %s shut down", addr))
			}
			if !conn.WaitForStateChange(waitCtx, state) {
				return fmt.Errorf("connection to %s not ready: %s", addr, state)
			}
		}
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	logger.Info("connected to cosmos grpc", zap.String("addr", addr))
	return conn, nil
}
