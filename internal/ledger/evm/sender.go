package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/winfall/claimkeeper/internal/domain"
)

// fallbackGasLimit is used when gas estimation fails for a reason other than
// a revert (estimation reverts are surfaced as revert errors instead).
const fallbackGasLimit = 300_000

// Sender signs and submits claim transactions with a local key. One Sender is
// bound to one submitter account.
type Sender struct {
	client *Client
	key    *ecdsa.PrivateKey
	from   common.Address
	signer types.Signer
}

// NewSender creates a Sender from a hex-encoded secp256k1 private key.
func NewSender(client *Client, privateKeyHex string) (*Sender, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("evm: invalid private key: %w", err)
	}
	return &Sender{
		client: client,
		key:    key,
		from:   ethcrypto.PubkeyToAddress(key.PublicKey),
		signer: types.LatestSignerForChainID(big.NewInt(client.ChainID())),
	}, nil
}

// From returns the submitter address derived from the key.
func (s *Sender) From() common.Address { return s.from }

// Send signs and broadcasts a zero-value transaction carrying the packed
// calldata, returning the transaction hash. Gas estimation doubles as a
// pre-flight simulation: a claim that would revert fails here with the
// decoded revert reason instead of burning fees on-chain.
func (s *Sender) Send(ctx context.Context, to common.Address, data []byte) (string, error) {
	nonce, err := s.client.rpc.PendingNonceAt(ctx, s.from)
	if err != nil {
		return "", fmt.Errorf("evm: pending nonce: %w: %v", domain.ErrGatewayUnavailable, err)
	}

	gasPrice, err := s.client.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("evm: suggest gas price: %w: %v", domain.ErrGatewayUnavailable, err)
	}

	msg := ethereum.CallMsg{From: s.from, To: &to, Data: data}
	gasLimit, err := s.client.rpc.EstimateGas(ctx, msg)
	if err != nil {
		rerr := parseRevert(err)
		var rev *domain.RevertError
		if asRevert(rerr, &rev) {
			return "", rerr
		}
		gasLimit = fallbackGasLimit
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return "", fmt.Errorf("evm: sign tx: %w", err)
	}

	if err := s.client.rpc.SendTransaction(ctx, signed); err != nil {
		return "", parseRevert(err)
	}

	return signed.Hash().Hex(), nil
}
