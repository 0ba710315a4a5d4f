package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/winfall/claimkeeper/internal/domain"
)

// marketABI covers the fixed-odds market contract: enumeration, per-side
// position reads, and the two market-domain claim entrypoints.
const marketABI = `[
  {"type":"function","name":"marketCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"markets","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"seasonId","type":"uint256"},{"name":"settled","type":"bool"},{"name":"winningSide","type":"uint8"},{"name":"counterpart","type":"address"},{"name":"question","type":"string"}]},
  {"type":"function","name":"positions","stateMutability":"view","inputs":[{"name":"id","type":"uint256"},{"name":"account","type":"address"},{"name":"side","type":"uint8"}],"outputs":[{"name":"amount","type":"uint256"},{"name":"payout","type":"uint256"},{"name":"claimed","type":"bool"}]},
  {"type":"function","name":"claimPayout","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"},{"name":"side","type":"uint8"}],"outputs":[]},
  {"type":"function","name":"redeemPosition","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]}
]`

// raffleABI covers the raffle contract: payout state, the participation and
// claimed predicates, the two raffle claim entrypoints, and the settlement
// events.
const raffleABI = `[
  {"type":"function","name":"seasonPayout","stateMutability":"view","inputs":[{"name":"seasonId","type":"uint256"}],"outputs":[{"name":"funded","type":"bool"},{"name":"grandWinner","type":"address"},{"name":"grandAmount","type":"uint256"},{"name":"grandClaimed","type":"bool"},{"name":"consolationAmount","type":"uint256"},{"name":"totalParticipants","type":"uint256"}]},
  {"type":"function","name":"isParticipant","stateMutability":"view","inputs":[{"name":"seasonId","type":"uint256"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"consolationClaimed","stateMutability":"view","inputs":[{"name":"seasonId","type":"uint256"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"claimGrand","stateMutability":"nonpayable","inputs":[{"name":"seasonId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"claimConsolation","stateMutability":"nonpayable","inputs":[{"name":"seasonId","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"GrandClaimed","inputs":[{"name":"seasonId","type":"uint256","indexed":true},{"name":"account","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"ConsolationClaimed","inputs":[{"name":"seasonId","type":"uint256","indexed":true},{"name":"account","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

// Gateway implements domain.Gateway and domain.SettlementEvents against the
// market and raffle contracts.
type Gateway struct {
	client     *Client
	sender     *Sender // nil in read-only deployments
	marketAddr common.Address
	raffleAddr common.Address
	market     abi.ABI
	raffle     abi.ABI
}

// NewGateway parses the contract ABIs and binds the gateway to the deployed
// contract addresses. sender may be nil for read-only use; SubmitClaim then
// fails.
func NewGateway(client *Client, sender *Sender, marketAddr, raffleAddr string) (*Gateway, error) {
	mABI, err := abi.JSON(strings.NewReader(marketABI))
	if err != nil {
		return nil, fmt.Errorf("evm: parse market abi: %w", err)
	}
	rABI, err := abi.JSON(strings.NewReader(raffleABI))
	if err != nil {
		return nil, fmt.Errorf("evm: parse raffle abi: %w", err)
	}
	return &Gateway{
		client:     client,
		sender:     sender,
		marketAddr: common.HexToAddress(marketAddr),
		raffleAddr: common.HexToAddress(raffleAddr),
		market:     mABI,
		raffle:     rABI,
	}, nil
}

// EnumerateMarkets lists all markets from the market contract, optionally
// filtered to the given seasons. Iteration order follows contract storage
// order and is not otherwise specified.
func (g *Gateway) EnumerateMarkets(ctx context.Context, seasons []uint64) ([]domain.MarketSummary, error) {
	out, err := g.call(ctx, g.marketAddr, g.market, "marketCount")
	if err != nil {
		return nil, fmt.Errorf("evm: market count: %w", err)
	}
	count := out[0].(*big.Int).Uint64()

	wanted := make(map[uint64]bool, len(seasons))
	for _, s := range seasons {
		wanted[s] = true
	}

	var markets []domain.MarketSummary
	for id := uint64(0); id < count; id++ {
		out, err := g.call(ctx, g.marketAddr, g.market, "markets", new(big.Int).SetUint64(id))
		if err != nil {
			return nil, fmt.Errorf("evm: read market %d: %w", id, err)
		}

		m := domain.MarketSummary{
			ID:          id,
			SeasonID:    out[0].(*big.Int).Uint64(),
			Settled:     out[1].(bool),
			WinningSide: sideFromUint8(out[2].(uint8)),
			Counterpart: strings.ToLower(out[3].(common.Address).Hex()),
			Question:    out[4].(string),
		}
		if m.Counterpart == strings.ToLower(zeroAddress) {
			m.Counterpart = ""
		}
		if len(wanted) > 0 && !wanted[m.SeasonID] {
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// ReadPosition reads one side of the account's position on a market.
func (g *Gateway) ReadPosition(ctx context.Context, marketID uint64, account string, side domain.Side) (domain.PositionRead, error) {
	out, err := g.call(ctx, g.marketAddr, g.market, "positions",
		new(big.Int).SetUint64(marketID), common.HexToAddress(account), sideToUint8(side))
	if err != nil {
		return domain.PositionRead{}, fmt.Errorf("evm: read position %d/%s: %w", marketID, side, err)
	}
	return domain.PositionRead{
		Amount:  out[0].(*big.Int),
		Payout:  out[1].(*big.Int),
		Claimed: out[2].(bool),
	}, nil
}

// ReadSeasonPayoutState reads the raffle contract's per-season record.
func (g *Gateway) ReadSeasonPayoutState(ctx context.Context, seasonID uint64) (domain.SeasonPayoutState, error) {
	out, err := g.call(ctx, g.raffleAddr, g.raffle, "seasonPayout", new(big.Int).SetUint64(seasonID))
	if err != nil {
		return domain.SeasonPayoutState{}, fmt.Errorf("evm: season payout %d: %w", seasonID, err)
	}

	st := domain.SeasonPayoutState{
		Funded:            out[0].(bool),
		GrandWinner:       strings.ToLower(out[1].(common.Address).Hex()),
		GrandAmount:       out[2].(*big.Int),
		GrandClaimed:      out[3].(bool),
		ConsolationAmount: out[4].(*big.Int),
		TotalParticipants: out[5].(*big.Int).Uint64(),
	}
	if st.GrandWinner == strings.ToLower(zeroAddress) {
		st.GrandWinner = ""
	}
	return st, nil
}

// IsParticipant checks the dedicated participation predicate.
func (g *Gateway) IsParticipant(ctx context.Context, seasonID uint64, account string) (bool, error) {
	out, err := g.call(ctx, g.raffleAddr, g.raffle, "isParticipant",
		new(big.Int).SetUint64(seasonID), common.HexToAddress(account))
	if err != nil {
		return false, fmt.Errorf("evm: is participant %d: %w", seasonID, err)
	}
	return out[0].(bool), nil
}

// IsConsolationClaimed checks the per-account consolation claimed flag.
func (g *Gateway) IsConsolationClaimed(ctx context.Context, seasonID uint64, account string) (bool, error) {
	out, err := g.call(ctx, g.raffleAddr, g.raffle, "consolationClaimed",
		new(big.Int).SetUint64(seasonID), common.HexToAddress(account))
	if err != nil {
		return false, fmt.Errorf("evm: consolation claimed %d: %w", seasonID, err)
	}
	return out[0].(bool), nil
}

// SubmitClaim packs and sends the domain-appropriate claim transaction.
func (g *Gateway) SubmitClaim(ctx context.Context, id domain.ClaimIdentity, account string) (string, error) {
	if g.sender == nil {
		return "", fmt.Errorf("evm: submit claim: %w", domain.ErrGatewayUnavailable)
	}

	var (
		to   common.Address
		data []byte
		err  error
	)
	switch id.Domain {
	case domain.DomainMarketPayout:
		to = g.marketAddr
		data, err = g.market.Pack("claimPayout", new(big.Int).SetUint64(id.MarketID), sideToUint8(id.Side))
	case domain.DomainPositionRedemption:
		to = g.marketAddr
		data, err = g.market.Pack("redeemPosition", new(big.Int).SetUint64(id.MarketID))
	case domain.DomainRaffleGrand:
		to = g.raffleAddr
		data, err = g.raffle.Pack("claimGrand", new(big.Int).SetUint64(id.SeasonID))
	case domain.DomainRaffleConsolation:
		to = g.raffleAddr
		data, err = g.raffle.Pack("claimConsolation", new(big.Int).SetUint64(id.SeasonID))
	default:
		return "", fmt.Errorf("evm: unsupported claim domain %q", id.Domain)
	}
	if err != nil {
		return "", fmt.Errorf("evm: pack claim %s: %w", id, err)
	}

	return g.sender.Send(ctx, to, data)
}

// call executes a read against a contract and unpacks the result.
func (g *Gateway) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	raw, err := g.client.rpc.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, parseRevert(err)
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

const zeroAddress = "0x0000000000000000000000000000000000000000"

func sideToUint8(side domain.Side) uint8 {
	if side == domain.SideNo {
		return 1
	}
	return 0
}

func sideFromUint8(v uint8) domain.Side {
	if v == 1 {
		return domain.SideNo
	}
	return domain.SideYes
}

// Compile-time interface checks.
var (
	_ domain.Gateway          = (*Gateway)(nil)
	_ domain.SettlementEvents = (*Gateway)(nil)
)
