package zcashapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onemorebsmith/zdt/src/common"
	"github.com/onemorebsmith/zdt/src/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var logger *zap.Logger

func TestMain(m *testing.M) {
	logger = common.ConfigureZap(zap.DebugLevel)
	m.Run()
}

var testKey = model.ViewingKey{
	Key:     "zxviewtestsapling1qv88lkdqqqqpqr27",
	Network: model.NetworkTestnet,
}

// fakeZcashd answers JSON-RPC posts from a method -> response table
func fakeZcashd(t *testing.T, responses map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := struct {
			Method string `json:"method"`
		}{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("unparsable rpc request: %s", err)
		}
		resp, exists := responses[req.Method]
		if !exists {
			t.Fatalf("unexpected rpc method `%s`", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(resp))
	}))
}

func newTestAPI(server *httptest.Server) *ZcashApi {
	return NewZcashAPI(common.CommonConfig{
		RPCServer:   server.URL,
		RPCUser:     "testuser",
		RPCPassword: "testpass",
	}, model.NetworkTestnet, logger)
}

func TestImportAlreadyHaveKeyIsSuccess(t *testing.T) {
	server := fakeZcashd(t, map[string]string{
		"z_importviewingkey": `{"result":null,"error":{"code":-4,"message":"Error: the wallet already contains the private key for this viewing key"}}`,
	})
	defer server.Close()

	if err := newTestAPI(server).ImportViewingKey(context.Background(), testKey); err != nil {
		t.Fatalf("already-have response should normalize to success, got: %s", err)
	}
}

func TestImportInvalidKey(t *testing.T) {
	server := fakeZcashd(t, map[string]string{
		"z_importviewingkey": `{"result":null,"error":{"code":-5,"message":"Invalid viewing key"}}`,
	})
	defer server.Close()

	err := newTestAPI(server).ImportViewingKey(context.Background(), testKey)
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got: %v", err)
	}
}

func TestImportRejectsMalformedKeyBeforeRPC(t *testing.T) {
	server := fakeZcashd(t, map[string]string{}) // any rpc call fails the test
	defer server.Close()

	err := newTestAPI(server).ImportViewingKey(context.Background(), model.ViewingKey{
		Key:     "zxviews1mainnetkeyonwrongnet",
		Network: model.NetworkTestnet,
	})
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got: %v", err)
	}
}

func TestListReceived(t *testing.T) {
	server := fakeZcashd(t, map[string]string{
		"z_listaddresses": `{"result":["ztestsapling1abcdef"],"error":null}`,
		"z_listreceivedbyaddress": `{"result":[
			{"txid":"aa11","amount":1.5,"amountZat":150000000,"confirmations":0,"memo":"0000"},
			{"txid":"bb22","amount":2.25,"amountZat":225000000,"confirmations":5,"blocktime":1665006287,"memo":"74657374"}
		],"error":null}`,
	})
	defer server.Close()

	received, err := newTestAPI(server).ListReceived(context.Background(), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(received) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(received))
	}
	if received[1].TxID != "bb22" || received[1].AmountZat != 225000000 {
		t.Fatalf("mismapped entry: %+v", received[1])
	}
	if received[0].BlockTime != 0 {
		t.Fatalf("unconfirmed entry should have zero blocktime, got %d", received[0].BlockTime)
	}
}

func TestListReceivedNoAddressForKey(t *testing.T) {
	server := fakeZcashd(t, map[string]string{
		"z_listaddresses": `{"result":[],"error":null}`,
	})
	defer server.Close()

	_, err := newTestAPI(server).ListReceived(context.Background(), testKey)
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got: %v", err)
	}
}

func TestNodeStatus(t *testing.T) {
	server := fakeZcashd(t, map[string]string{
		"getblockchaininfo": `{"result":{"blocks":2500000,"headers":2500000,"verificationprogress":0.99999},"error":null}`,
	})
	defer server.Close()

	status, err := newTestAPI(server).NodeStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !status.IsSynced || status.SyncedHeight != 2500000 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestWarmupSurfacesAsNotSynced(t *testing.T) {
	server := fakeZcashd(t, map[string]string{
		"getblockchaininfo": `{"result":null,"error":{"code":-28,"message":"Verifying blocks..."}}`,
	})
	defer server.Close()

	_, err := newTestAPI(server).NodeStatus(context.Background())
	if !errors.Is(err, ErrNotSynced) {
		t.Fatalf("expected ErrNotSynced, got: %v", err)
	}
}

func TestUnreachableNodeSurfacesAsUnavailable(t *testing.T) {
	server := fakeZcashd(t, map[string]string{})
	server.Close() // refuse all connections

	_, err := newTestAPI(server).NodeStatus(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got: %v", err)
	}
}

func TestTimeoutSurfacesAsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	api := newTestAPI(server)
	api.client.Timeout = 50 * time.Millisecond
	_, err := api.NodeStatus(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got: %v", err)
	}
}
