package zcashapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/onemorebsmith/zdt/src/common"
	"github.com/onemorebsmith/zdt/src/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable - zcashd unreachable or timed out, transient, callers may retry
	ErrUnavailable = fmt.Errorf("zcashd unavailable")
	// ErrNotSynced - zcashd reachable but still catching up, callers should back off
	ErrNotSynced = fmt.Errorf("zcashd not synced")
	// ErrInvalidKey - viewing key rejected, retrying will not help
	ErrInvalidKey = fmt.Errorf("invalid viewing key")
)

// zcashd RPC_IN_WARMUP, returned while the node is verifying blocks
const rpcInWarmup = -28

const rpcTimeout = 30 * time.Second

type ZcashApi struct {
	url      string
	user     string
	password string
	network  model.Network
	client   *http.Client
	logger   *zap.Logger
}

func NewZcashAPI(cfg common.CommonConfig, network model.Network, logger *zap.Logger) *ZcashApi {
	return &ZcashApi{
		url:      cfg.RPCServer,
		user:     cfg.RPCUser,
		password: cfg.RPCPassword,
		network:  network,
		client:   &http.Client{Timeout: rpcTimeout},
		logger: common.ComponentLogger(logger, "zcash_api").
			With(zap.String("address", cfg.RPCServer)),
	}
}

type rpcRequest struct {
	JsonRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (za *ZcashApi) call(ctx context.Context, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(rpcRequest{
		JsonRPC: "1.0",
		ID:      "zdt",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrapf(err, "failed marshalling rpc request for %s", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, za.url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "failed building rpc request for %s", method)
	}
	req.SetBasicAuth(za.user, za.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := za.client.Do(req)
	if err != nil {
		RecordRPCError(method)
		return errors.Wrapf(ErrUnavailable, "%s: %s", method, err)
	}
	defer resp.Body.Close()

	decoded := rpcResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		RecordRPCError(method)
		return errors.Wrapf(ErrUnavailable, "%s: unparsable response: %s", method, err)
	}
	if decoded.Error != nil {
		if decoded.Error.Code == rpcInWarmup {
			return errors.Wrapf(ErrNotSynced, "%s: %s", method, decoded.Error.Message)
		}
		return errors.Wrapf(errRPC{decoded.Error.Code, decoded.Error.Message}, "rpc call %s failed", method)
	}
	if out != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return errors.Wrapf(err, "failed unmarshalling %s result", method)
		}
	}
	return nil
}

// errRPC carries a raw zcashd error through the wrap chain
type errRPC struct {
	Code    int
	Message string
}

func (e errRPC) Error() string {
	return fmt.Sprintf("zcashd error %d: %s", e.Code, e.Message)
}

// ImportViewingKey registers the key with the node without triggering a full
// rescan. Importing a key the node already has is normalized into success.
func (za *ZcashApi) ImportViewingKey(ctx context.Context, key model.ViewingKey) error {
	if !key.Valid() {
		return errors.Wrapf(ErrInvalidKey, "key not valid for network %s", key.Network)
	}
	err := za.call(ctx, "z_importviewingkey", []any{key.Key, "whenkeyisnew"}, nil)
	if err != nil {
		var raw errRPC
		if errors.As(err, &raw) {
			msg := strings.ToLower(raw.Message)
			// message wording has drifted across zcashd releases
			if strings.Contains(msg, "already have") || strings.Contains(msg, "already contains") {
				return nil
			}
			if strings.Contains(msg, "invalid") {
				return errors.Wrap(ErrInvalidKey, raw.Message)
			}
		}
		return err
	}
	za.logger.Info("viewing key imported")
	return nil
}

// ListReceived fetches every entry visible to the key, including unconfirmed
// ones. Confirmation filtering happens at normalization, not here.
func (za *ZcashApi) ListReceived(ctx context.Context, key model.ViewingKey) ([]model.RawReceived, error) {
	if !key.Valid() {
		return nil, errors.Wrapf(ErrInvalidKey, "key not valid for network %s", key.Network)
	}

	var addresses []string
	if err := za.call(ctx, "z_listaddresses", nil, &addresses); err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, errors.Wrap(ErrInvalidKey, "no z-address known for viewing key")
	}

	var received []model.RawReceived
	if err := za.call(ctx, "z_listreceivedbyaddress", []any{addresses[0], 0}, &received); err != nil {
		return nil, err
	}
	return received, nil
}

type blockchainInfo struct {
	Blocks               int64   `json:"blocks"`
	Headers              int64   `json:"headers"`
	VerificationProgress float64 `json:"verificationprogress"`
}

func (za *ZcashApi) NodeStatus(ctx context.Context) (*model.NodeStatus, error) {
	info := blockchainInfo{}
	if err := za.call(ctx, "getblockchaininfo", nil, &info); err != nil {
		return nil, err
	}
	return &model.NodeStatus{
		SyncedHeight: info.Blocks,
		IsSynced:     info.Blocks > 0 && info.Blocks >= info.Headers && info.VerificationProgress > 0.9999,
	}, nil
}
