package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/lokapay/settlement-engine/pkg/config"
	"github.com/lokapay/settlement-engine/pkg/logger"
)

const nativeDecimals = 18

// rpcClient is the subset of the Ethereum RPC surface the engine uses.
type rpcClient interface {
	bind.ContractBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Client talks to the settlement chain on behalf of the operator wallet. It
// is constructed once and passed to the components that need it; there are no
// process-wide provider singletons.
type Client struct {
	rpc      rpcClient
	chainID  *big.Int
	auth     *bind.TransactOpts
	operator common.Address

	token   *bind.BoundContract
	factory *bind.BoundContract

	tokenAddr     common.Address
	factoryAddr   common.Address
	tokenDecimals int32

	factoryABI abi.ABI
	vaultABI   abi.ABI
}

// Dial connects to the configured RPC endpoint and prepares the operator
// signer plus bound token and factory contracts.
func Dial(ctx context.Context, cfg config.ChainConfig, logg *logger.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.RPCURL)
	if endpoint == "" {
		return nil, fmt.Errorf("chain rpc url required")
	}
	rpc, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dialing chain rpc: %w", err)
	}
	client, err := NewClient(rpc, cfg)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	if logg != nil {
		logCtx := logg.WithField(ctx, "operator", client.operator.Hex())
		logg.Info(logCtx, "chain client connected")
	}
	return client, nil
}

// NewClient wires a client over an existing RPC backend.
func NewClient(rpc rpcClient, cfg config.ChainConfig) (*Client, error) {
	if rpc == nil {
		return nil, fmt.Errorf("rpc backend required")
	}
	key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(cfg.OperatorKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing operator key: %w", err)
	}
	chainID := big.NewInt(cfg.ChainID)
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("building transactor: %w", err)
	}

	tokenABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parsing erc20 abi: %w", err)
	}
	factoryABI, err := abi.JSON(strings.NewReader(vaultFactoryABI))
	if err != nil {
		return nil, fmt.Errorf("parsing factory abi: %w", err)
	}
	vaultABI, err := abi.JSON(strings.NewReader(vaultContractABI))
	if err != nil {
		return nil, fmt.Errorf("parsing vault abi: %w", err)
	}

	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("invalid token address %q", cfg.TokenAddress)
	}
	if !common.IsHexAddress(cfg.FactoryAddress) {
		return nil, fmt.Errorf("invalid factory address %q", cfg.FactoryAddress)
	}

	tokenAddr := common.HexToAddress(cfg.TokenAddress)
	factoryAddr := common.HexToAddress(cfg.FactoryAddress)

	return &Client{
		rpc:           rpc,
		chainID:       chainID,
		auth:          auth,
		operator:      gethcrypto.PubkeyToAddress(key.PublicKey),
		token:         bind.NewBoundContract(tokenAddr, tokenABI, rpc, rpc, rpc),
		factory:       bind.NewBoundContract(factoryAddr, factoryABI, rpc, rpc, rpc),
		tokenAddr:     tokenAddr,
		factoryAddr:   factoryAddr,
		tokenDecimals: cfg.TokenDecimals,
		factoryABI:    factoryABI,
		vaultABI:      vaultABI,
	}, nil
}

// OperatorAddress returns the operator wallet address.
func (c *Client) OperatorAddress() string {
	return c.operator.Hex()
}

// Ping checks the RPC connection by fetching the chain head.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rpc.HeaderByNumber(ctx, nil)
	return err
}

// TokenBalance reads the stablecoin balance at address, in whole token units.
func (c *Client) TokenBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("invalid address %q", address)
	}
	var out []interface{}
	err := c.token.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", common.HexToAddress(address))
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf %s: %w", address, err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("balanceOf %s: unexpected return type %T", address, out[0])
	}
	return FromBaseUnits(balance, c.tokenDecimals), nil
}

// CodeExists reports whether contract code is deployed at address.
func (c *Client) CodeExists(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("invalid address %q", address)
	}
	code, err := c.rpc.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, fmt.Errorf("code at %s: %w", address, err)
	}
	return len(code) > 0, nil
}

// OperatorBalance reads the operator wallet's native balance in whole units.
func (c *Client) OperatorBalance(ctx context.Context) (decimal.Decimal, error) {
	balance, err := c.rpc.BalanceAt(ctx, c.operator, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("operator balance: %w", err)
	}
	return FromBaseUnits(balance, nativeDecimals), nil
}

// EstimateDeployCost simulates the vault deployment and returns its expected
// native cost in whole units. A simulation failure is returned as an error.
func (c *Client) EstimateDeployCost(ctx context.Context, salt string) (decimal.Decimal, error) {
	saltBytes, err := ParseSalt(salt)
	if err != nil {
		return decimal.Zero, err
	}
	data, err := c.factoryABI.Pack("deployVault", saltBytes, c.operator)
	if err != nil {
		return decimal.Zero, fmt.Errorf("packing deployVault: %w", err)
	}
	gas, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{
		From: c.operator,
		To:   &c.factoryAddr,
		Data: data,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("estimate deployVault: %w", err)
	}
	price, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("suggest gas price: %w", err)
	}
	cost := new(big.Int).Mul(new(big.Int).SetUint64(gas), price)
	return FromBaseUnits(cost, nativeDecimals), nil
}

// DeployVault submits the deterministic vault deployment for salt, owned by
// the operator. The returned transaction has not been mined yet.
func (c *Client) DeployVault(ctx context.Context, salt string) (*gethtypes.Transaction, error) {
	saltBytes, err := ParseSalt(salt)
	if err != nil {
		return nil, err
	}
	opts := c.transactOpts(ctx)
	tx, err := c.factory.Transact(opts, "deployVault", saltBytes, c.operator)
	if err != nil {
		return nil, fmt.Errorf("deployVault: %w", err)
	}
	return tx, nil
}

// VaultAddress asks the factory for the deterministic address derived from
// salt and the operator owner. The call is pure; it never mutates state.
func (c *Client) VaultAddress(ctx context.Context, salt string) (string, error) {
	saltBytes, err := ParseSalt(salt)
	if err != nil {
		return "", err
	}
	var out []interface{}
	err = c.factory.Call(&bind.CallOpts{Context: ctx}, &out, "getVaultAddress", saltBytes, c.operator)
	if err != nil {
		return "", fmt.Errorf("getVaultAddress: %w", err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return "", fmt.Errorf("getVaultAddress: unexpected return type %T", out[0])
	}
	return addr.Hex(), nil
}

// EstimateSweep simulates sweep(token) against the vault. An error indicates
// the transfer would revert and must not be submitted.
func (c *Client) EstimateSweep(ctx context.Context, vaultAddress string) error {
	if !common.IsHexAddress(vaultAddress) {
		return fmt.Errorf("invalid vault address %q", vaultAddress)
	}
	vault := common.HexToAddress(vaultAddress)
	data, err := c.vaultABI.Pack("sweep", c.tokenAddr)
	if err != nil {
		return fmt.Errorf("packing sweep: %w", err)
	}
	_, err = c.rpc.EstimateGas(ctx, ethereum.CallMsg{
		From: c.operator,
		To:   &vault,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("estimate sweep: %w", err)
	}
	return nil
}

// SweepVault submits sweep(token) on the vault at vaultAddress, transferring
// its full stablecoin balance to the hot wallet configured in the contract.
func (c *Client) SweepVault(ctx context.Context, vaultAddress string) (*gethtypes.Transaction, error) {
	if !common.IsHexAddress(vaultAddress) {
		return nil, fmt.Errorf("invalid vault address %q", vaultAddress)
	}
	vault := bind.NewBoundContract(common.HexToAddress(vaultAddress), c.vaultABI, c.rpc, c.rpc, c.rpc)
	tx, err := vault.Transact(c.transactOpts(ctx), "sweep", c.tokenAddr)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	return tx, nil
}

// WaitMined blocks until the transaction is mined and verifies the receipt
// reports success. The caller bounds the wait through ctx.
func (c *Client) WaitMined(ctx context.Context, tx *gethtypes.Transaction) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	receipt, err := bind.WaitMined(ctx, c.rpc, tx)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return nil
}

func (c *Client) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := *c.auth
	opts.Context = ctx
	return &opts
}
