package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrNoSigner is returned by write paths on a read-only client.
var ErrNoSigner = errors.New("no signing key configured")

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Backend is a Caller that also follows the chain head.
type Backend interface {
	Caller
	BlockNumber(ctx context.Context) (uint64, error)
}

// TxRequest is a raw transaction to a contract.
type TxRequest struct {
	To        common.Address
	Data      []byte
	Value     *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// Sender signs and submits transactions for one account.
type Sender interface {
	From() common.Address
	Send(ctx context.Context, req TxRequest) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Client is an RPC connection plus an optional signing key.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
	logger  *log.Logger
}

func Dial(ctx context.Context, rpcURL, keyHex string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	id, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	c := &Client{eth: eth, chainID: id, logger: logger}
	if keyHex = strings.TrimSpace(keyHex); keyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("private key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

func (c *Client) Close() { c.eth.Close() }

func (c *Client) ChainID() uint64 { return c.chainID.Uint64() }

func (c *Client) From() common.Address { return c.from }

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, blockNumber)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

func (c *Client) BalanceAt(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, addr, nil)
}

func (c *Client) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if c.key == nil {
		return nil, ErrNoSigner
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (c *Client) Send(ctx context.Context, req TxRequest) (*types.Transaction, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.Value = req.Value
	opts.GasFeeCap = req.GasFeeCap
	opts.GasTipCap = req.GasTipCap
	bound := bind.NewBoundContract(req.To, abi.ABI{}, c.eth, c.eth, c.eth)
	return bound.RawTransact(opts, req.Data)
}

func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, c.eth, tx)
}

// Deploy sends a contract creation and waits for it to be mined.
func (c *Client) Deploy(ctx context.Context, parsed abi.ABI, bytecode []byte, args ...any) (common.Address, *types.Receipt, error) {
	opts, err := c.transactOpts(ctx)
	if err != nil {
		return common.Address{}, nil, err
	}
	addr, tx, _, err := bind.DeployContract(opts, parsed, bytecode, c.eth, args...)
	if err != nil {
		return common.Address{}, nil, err
	}
	c.logger.Printf("deploy tx=%s address=%s", tx.Hash().Hex(), addr.Hex())
	if _, err := bind.WaitDeployed(ctx, c.eth, tx); err != nil {
		return common.Address{}, nil, err
	}
	rcpt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return common.Address{}, nil, err
	}
	return addr, rcpt, nil
}
