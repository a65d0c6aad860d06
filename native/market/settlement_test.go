package market

import (
	"errors"
	"math/big"
	"testing"
)

func TestSplitProceedsExact(t *testing.T) {
	amounts := []int64{1, 7, 99, 100, 12345}
	for pct := uint32(0); pct <= 100; pct++ {
		for _, raw := range amounts {
			amount := big.NewInt(raw)
			proceeds, fee := splitProceeds(amount, pct)
			if proceeds.Sign() < 0 || fee.Sign() < 0 {
				t.Fatalf("pct=%d amount=%d: negative part (%s, %s)", pct, raw, proceeds, fee)
			}
			sum := new(big.Int).Add(proceeds, fee)
			if sum.Cmp(amount) != 0 {
				t.Fatalf("pct=%d amount=%d: parts sum to %s", pct, raw, sum)
			}
			expected := new(big.Int).Mul(amount, big.NewInt(int64(pct)))
			expected.Div(expected, big.NewInt(100))
			if fee.Cmp(expected) != 0 {
				t.Fatalf("pct=%d amount=%d: fee %s want %s", pct, raw, fee, expected)
			}
		}
	}
}

func TestSplitProceedsTruncatesFee(t *testing.T) {
	// 99 at 5% yields a fractional fee of 4.95; truncation keeps the
	// remainder with the seller.
	proceeds, fee := splitProceeds(big.NewInt(99), 5)
	if fee.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("fee %s want 4", fee)
	}
	if proceeds.Cmp(big.NewInt(95)) != 0 {
		t.Fatalf("proceeds %s want 95", proceeds)
	}
}

func TestSetRoyaltyFeePercent(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, emitter := newTestEngine(state, ledger)
	stranger := newTestAddress(0x09)

	if err := engine.SetRoyaltyFeePercent(stranger, 5); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if err := engine.SetRoyaltyFeePercent(testAdmin, 101); !errors.Is(err, ErrInvalidPercentage) {
		t.Fatalf("expected ErrInvalidPercentage, got %v", err)
	}

	if pct, err := engine.RoyaltyFeePercent(); err != nil || pct != 0 {
		t.Fatalf("unset royalty should read as zero, got %d (%v)", pct, err)
	}
	if err := engine.SetRoyaltyFeePercent(testAdmin, 7); err != nil {
		t.Fatalf("set royalty: %v", err)
	}
	if pct, err := engine.RoyaltyFeePercent(); err != nil || pct != 7 {
		t.Fatalf("royalty should persist, got %d (%v)", pct, err)
	}
	evt := emitter.lastOfType(EventTypeRoyaltyUpdated)
	if evt == nil || evt.Attributes["percent"] != "7" {
		t.Fatalf("expected royalty-updated event, got %v", evt)
	}
}

func TestSettlementRoutesRoyaltyToCreator(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, emitter := newTestEngine(state, ledger)
	creator := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x03)
	// The creator minted and later sold the item; the current seller is a
	// different account, so the royalty and proceeds diverge.
	ledger.mint(1, creator)
	ledger.owners[1] = seller
	state.setBalance(buyer, 100)
	if err := engine.SetRoyaltyFeePercent(testAdmin, 5); err != nil {
		t.Fatalf("set royalty: %v", err)
	}
	if _, err := engine.List(seller, 1, big.NewInt(100)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := engine.Buy(buyer, 1, big.NewInt(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if got := state.balance(seller); got.Cmp(big.NewInt(95)) != 0 {
		t.Fatalf("seller proceeds: %s", got)
	}
	if got := state.balance(creator); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("creator royalty: %s", got)
	}
	if got := state.balance(buyer); got.Sign() != 0 {
		t.Fatalf("buyer balance: %s", got)
	}
	sold := emitter.lastOfType(EventTypeSold)
	if sold == nil {
		t.Fatalf("expected sold event")
	}
	if sold.Attributes["beneficiary"] != hexAddr(creator) {
		t.Fatalf("beneficiary attr: %v", sold.Attributes)
	}
}

func TestSettlementFallsBackToTreasury(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, _ := newTestEngine(state, ledger)
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x03)
	// An item with no recorded creator routes the royalty to the treasury.
	ledger.owners[1] = seller
	ledger.creators[1] = [20]byte{}
	state.setBalance(buyer, 100)
	if err := engine.SetRoyaltyFeePercent(testAdmin, 10); err != nil {
		t.Fatalf("set royalty: %v", err)
	}
	if _, err := engine.List(seller, 1, big.NewInt(100)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := engine.Buy(buyer, 1, big.NewInt(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got := state.balance(testTreasury); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("treasury royalty: %s", got)
	}
	if got := state.balance(seller); got.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("seller proceeds: %s", got)
	}
}

func TestSettlementZeroRoyalty(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, _ := newTestEngine(state, ledger)
	seller := newTestAddress(0x02)
	buyer := newTestAddress(0x03)
	ledger.mint(1, seller)
	state.setBalance(buyer, 100)
	if _, err := engine.List(seller, 1, big.NewInt(100)); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := engine.Buy(buyer, 1, big.NewInt(100)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if got := state.balance(seller); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("seller should receive the full amount, got %s", got)
	}
}
