package tron

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"tron-multisig/errs"
	"tron-multisig/models"
)

const (
	defaultFeeLimit    = 1_000_000_000 // 1000 TRX in SUN
	trc20TransferSig   = "transfer(address,uint256)"
	requestAttempts    = 3
	requestRetryDelay  = 500 * time.Millisecond
	httpRequestTimeout = 15 * time.Second
)

// Client talks to a trongrid-compatible HTTP node.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the given RPC base URL
// (e.g. https://api.trongrid.io).
func NewClient(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: httpRequestTimeout},
	}
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
			if err != nil {
				return errors.Wrap(err, "build request")
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := c.http.Do(req)
			if err != nil {
				return errors.Wrapf(errs.ErrTransport, "%s: %v", path, err)
			}
			defer resp.Body.Close()
			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.Wrapf(errs.ErrTransport, "%s: read body: %v", path, err)
			}
			if resp.StatusCode != http.StatusOK {
				return errors.Wrapf(errs.ErrTransport, "%s: status %d: %s", path, resp.StatusCode, raw)
			}
			if err := json.Unmarshal(raw, out); err != nil {
				return errors.Wrapf(errs.ErrTransport, "%s: decode response: %v", path, err)
			}
			return nil
		},
		retry.Attempts(requestAttempts),
		retry.Delay(requestRetryDelay),
		retry.LastErrorOnly(true),
	)
}

type apiError struct {
	Error string `json:"Error"`
}

// CreateTransaction builds an unsigned native-coin transfer through
// wallet/createtransaction. Addresses go out in base58 (visible) form.
func (c *Client) CreateTransaction(ctx context.Context, from, to string, amount int64) (*Transaction, error) {
	req := map[string]interface{}{
		"owner_address": from,
		"to_address":    to,
		"amount":        amount,
		"visible":       true,
	}
	var raw json.RawMessage
	if err := c.post(ctx, "/wallet/createtransaction", req, &raw); err != nil {
		return nil, err
	}
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		return nil, errors.Wrapf(errs.ErrTransport, "createtransaction: %s", apiErr.Error)
	}
	return DecodeTransaction(raw)
}

type triggerResponse struct {
	Result struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	Transaction json.RawMessage `json:"transaction"`
}

// CreateTokenTransfer builds an unsigned TRC-20 transfer(address,uint256)
// call through wallet/triggersmartcontract.
func (c *Client) CreateTokenTransfer(ctx context.Context, token, from, to string, amount int64) (*Transaction, error) {
	param, err := encodeTransferParams(to, amount)
	if err != nil {
		return nil, err
	}
	req := map[string]interface{}{
		"contract_address":  token,
		"function_selector": trc20TransferSig,
		"parameter":         param,
		"owner_address":     from,
		"fee_limit":         defaultFeeLimit,
		"call_value":        0,
		"visible":           true,
	}
	var resp triggerResponse
	if err := c.post(ctx, "/wallet/triggersmartcontract", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Result.Result {
		return nil, errors.Wrapf(errs.ErrTransport, "triggersmartcontract [%s]: %s",
			resp.Result.Code, decodeHexMessage(resp.Result.Message))
	}
	return DecodeTransaction(resp.Transaction)
}

// encodeTransferParams ABI-encodes (address _to, uint256 _amount) for
// the TRC-20 transfer selector. The 41 prefix is stripped before
// padding, as the ABI address type is 20 bytes.
func encodeTransferParams(to string, amount int64) (string, error) {
	toHex, err := AddressToHex(to)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%064s%064x", toHex[2:], amount), nil
}

type broadcastResponse struct {
	Result  bool   `json:"result"`
	TxID    string `json:"txid"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Broadcast submits a fully signed payload through
// wallet/broadcasttransaction. A rejection comes back as a transport
// error carrying the node's decoded message.
func (c *Client) Broadcast(ctx context.Context, payload []byte) (string, error) {
	tx, err := DecodeTransaction(payload)
	if err != nil {
		return "", err
	}
	var resp broadcastResponse
	if err := c.post(ctx, "/wallet/broadcasttransaction", json.RawMessage(payload), &resp); err != nil {
		return "", err
	}
	if !resp.Result {
		return "", errors.Wrapf(errs.ErrTransport, "broadcast rejected [%s]: %s",
			resp.Code, decodeHexMessage(resp.Message))
	}
	if resp.TxID != "" {
		return resp.TxID, nil
	}
	return tx.TxID, nil
}

type transactionInfo struct {
	ID          string `json:"id"`
	BlockNumber int64  `json:"blockNumber"`
}

// Confirmed reports whether the transaction with the given id has been
// included in a block.
func (c *Client) Confirmed(ctx context.Context, txID string) (bool, error) {
	var info transactionInfo
	if err := c.post(ctx, "/wallet/gettransactioninfobyid", map[string]string{"value": txID}, &info); err != nil {
		return false, err
	}
	return info.ID == txID && info.BlockNumber > 0, nil
}

type accountResponse struct {
	OwnerPermission struct {
		Threshold int64 `json:"threshold"`
		Keys      []struct {
			Address string `json:"address"`
			Weight  int64  `json:"weight"`
		} `json:"keys"`
	} `json:"owner_permission"`
}

// AccountPermission queries the native multi-key permission of an
// account and returns it as a roster plus threshold.
func (c *Client) AccountPermission(ctx context.Context, addr string) (models.Roster, error) {
	req := map[string]interface{}{"address": addr, "visible": true}
	var resp accountResponse
	if err := c.post(ctx, "/wallet/getaccount", req, &resp); err != nil {
		return models.Roster{}, err
	}
	perm := resp.OwnerPermission
	if len(perm.Keys) == 0 {
		return models.Roster{}, errors.Wrapf(errs.ErrTransport, "account %s has no owner permission keys", addr)
	}
	roster := models.Roster{Threshold: int(perm.Threshold)}
	for _, k := range perm.Keys {
		roster.Owners = append(roster.Owners, k.Address)
	}
	if err := roster.Validate(); err != nil {
		return models.Roster{}, err
	}
	return roster, nil
}

// decodeHexMessage turns the API's hex-encoded error strings into text.
func decodeHexMessage(msg string) string {
	raw, err := hex.DecodeString(msg)
	if err != nil {
		return msg
	}
	return string(raw)
}
