package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/winfall/claimkeeper/internal/domain"
)

// eventBufferSize is the delivery buffer between the log subscription and
// the listener.
const eventBufferSize = 64

// SubscribeGrandClaimed subscribes to GrandClaimed logs from the raffle
// contract. The returned channel closes when the context is cancelled or the
// underlying subscription drops.
func (g *Gateway) SubscribeGrandClaimed(ctx context.Context) (<-chan domain.SettlementEvent, error) {
	return g.subscribeSettlement(ctx, "GrandClaimed", domain.DomainRaffleGrand)
}

// SubscribeConsolationClaimed subscribes to ConsolationClaimed logs.
func (g *Gateway) SubscribeConsolationClaimed(ctx context.Context) (<-chan domain.SettlementEvent, error) {
	return g.subscribeSettlement(ctx, "ConsolationClaimed", domain.DomainRaffleConsolation)
}

func (g *Gateway) subscribeSettlement(ctx context.Context, eventName string, claimDomain domain.ClaimDomain) (<-chan domain.SettlementEvent, error) {
	if !g.client.SupportsSubscriptions() {
		return nil, domain.ErrEventsUnsupported
	}

	ev, ok := g.raffle.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("evm: unknown event %q", eventName)
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{g.raffleAddr},
		Topics:    [][]common.Hash{{ev.ID}},
	}

	logs := make(chan types.Log, eventBufferSize)
	sub, err := g.client.ws.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("evm: subscribe %s: %w", eventName, err)
	}

	out := make(chan domain.SettlementEvent, eventBufferSize)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Err():
				return
			case lg := <-logs:
				evt, err := g.decodeSettlement(lg, claimDomain)
				if err != nil {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// decodeSettlement unpacks one settlement log. seasonId and account are
// indexed topics; amount is the only data field.
func (g *Gateway) decodeSettlement(lg types.Log, claimDomain domain.ClaimDomain) (domain.SettlementEvent, error) {
	if len(lg.Topics) < 3 {
		return domain.SettlementEvent{}, fmt.Errorf("evm: settlement log with %d topics", len(lg.Topics))
	}

	seasonID := new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64()
	account := strings.ToLower(common.BytesToAddress(lg.Topics[2].Bytes()).Hex())
	amount := new(big.Int).SetBytes(lg.Data)

	return domain.SettlementEvent{
		Domain:   claimDomain,
		SeasonID: seasonID,
		Account:  account,
		Amount:   amount,
		TxHash:   lg.TxHash.Hex(),
	}, nil
}
