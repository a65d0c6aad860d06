package market

import (
	"errors"
	"math"
	"math/big"
	"testing"

	nativecommon "nftmarket/native/common"
)

const testDuration int64 = 3600

func TestStartAuctionValidations(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, emitter := newTestEngine(state, ledger)
	alice := newTestAddress(0x01)
	bob := newTestAddress(0x02)
	ledger.mint(1, alice)

	if _, err := engine.StartAuction(alice, 1, nil, testDuration); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for nil starting price, got %v", err)
	}
	if _, err := engine.StartAuction(alice, 1, big.NewInt(0), testDuration); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero starting price, got %v", err)
	}
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), math.MaxInt64); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration for oversized duration, got %v", err)
	}
	if _, err := engine.StartAuction(bob, 1, big.NewInt(5), testDuration); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	auction, err := engine.StartAuction(alice, 1, big.NewInt(5), testDuration)
	if err != nil {
		t.Fatalf("start auction: %v", err)
	}
	if auction.EndTime != testNow+testDuration {
		t.Fatalf("deadline mismatch: got %d want %d", auction.EndTime, testNow+testDuration)
	}
	if owner, _ := ledger.OwnerOf(1); owner != engine.Vault() {
		t.Fatalf("custody should move to the marketplace vault")
	}
	evt := emitter.lastOfType(EventTypeAuctionStarted)
	if evt == nil {
		t.Fatalf("expected auction-started event")
	}
	if evt.Attributes["endTime"] == "" {
		t.Fatalf("auction-started event must carry the deadline")
	}

	// The item is now escrowed: neither a second auction nor a listing may open.
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), testDuration); !errors.Is(err, ErrItemEscrowed) {
		t.Fatalf("expected ErrItemEscrowed, got %v", err)
	}
	if _, err := engine.List(alice, 1, big.NewInt(5)); !errors.Is(err, ErrItemEscrowed) {
		t.Fatalf("expected ErrItemEscrowed for listing, got %v", err)
	}
}

func TestPlaceBidFloorAndOutbid(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, emitter := newTestEngine(state, ledger)
	alice := newTestAddress(0x01)
	carol := newTestAddress(0x03)
	dave := newTestAddress(0x04)
	ledger.mint(1, alice)
	state.setBalance(carol, 100)
	state.setBalance(dave, 100)
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), testDuration); err != nil {
		t.Fatalf("start auction: %v", err)
	}

	if err := engine.PlaceBid(carol, 1, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil bid, got %v", err)
	}
	if err := engine.PlaceBid(carol, 1, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero bid, got %v", err)
	}
	// The starting price is a floor, not a valid first bid.
	if err := engine.PlaceBid(carol, 1, big.NewInt(5)); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("expected ErrBidTooLow for bid equal to starting price, got %v", err)
	}
	if err := engine.PlaceBid(carol, 1, big.NewInt(6)); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if got := state.balance(carol); got.Cmp(big.NewInt(94)) != 0 {
		t.Fatalf("carol balance after bid: %s", got)
	}
	if escrow, _ := state.EscrowBalance(1); escrow.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("escrow after first bid: %s", escrow)
	}

	// Ties with the current leader are rejected.
	if err := engine.PlaceBid(dave, 1, big.NewInt(6)); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("expected ErrBidTooLow for tie, got %v", err)
	}
	if err := engine.PlaceBid(dave, 1, big.NewInt(10)); err != nil {
		t.Fatalf("outbid: %v", err)
	}
	// Carol's stake is pushed back immediately.
	if got := state.balance(carol); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("carol should be refunded in full, balance %s", got)
	}
	if got := state.balance(dave); got.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("dave balance after bid: %s", got)
	}
	if escrow, _ := state.EscrowBalance(1); escrow.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("escrow after outbid: %s", escrow)
	}

	auction, ok := engine.GetAuction(1)
	if !ok {
		t.Fatalf("auction should exist")
	}
	if auction.HighestBidder != dave || auction.HighestBid.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected leader state: %+v", auction)
	}
	if _, staked := auction.Bids[carol]; staked {
		t.Fatalf("refunded bidder should have no recorded stake")
	}
	evt := emitter.lastOfType(EventTypeBidPlaced)
	if evt == nil {
		t.Fatalf("expected bid-placed event")
	}
	if evt.Attributes["refundAmount"] != "6" {
		t.Fatalf("outbid event should carry the refund, attrs %v", evt.Attributes)
	}
}

func TestPlaceBidLifecycleErrors(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, _ := newTestEngine(state, ledger)
	alice := newTestAddress(0x01)
	carol := newTestAddress(0x03)
	broke := newTestAddress(0x05)
	ledger.mint(1, alice)
	state.setBalance(carol, 100)

	if err := engine.PlaceBid(carol, 99, big.NewInt(10)); !errors.Is(err, ErrAuctionNotFound) {
		t.Fatalf("expected ErrAuctionNotFound, got %v", err)
	}

	now := testNow
	engine.SetNowFunc(func() int64 { return now })
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), testDuration); err != nil {
		t.Fatalf("start auction: %v", err)
	}

	if err := engine.PlaceBid(broke, 1, big.NewInt(10)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if escrow, _ := state.EscrowBalance(1); escrow.Sign() != 0 {
		t.Fatalf("failed bid must not escrow funds")
	}

	now = testNow + testDuration
	if err := engine.PlaceBid(carol, 1, big.NewInt(10)); !errors.Is(err, ErrAuctionEnded) {
		t.Fatalf("expected ErrAuctionEnded at the deadline, got %v", err)
	}
	if err := engine.EndAuction(carol, 1); err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if err := engine.PlaceBid(carol, 1, big.NewInt(10)); !errors.Is(err, ErrAuctionNotActive) {
		t.Fatalf("expected ErrAuctionNotActive after settlement, got %v", err)
	}
}

func TestWithdrawBid(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, emitter := newTestEngine(state, ledger)
	alice := newTestAddress(0x01)
	carol := newTestAddress(0x03)
	dave := newTestAddress(0x04)
	ledger.mint(1, alice)
	state.setBalance(carol, 100)
	state.setBalance(dave, 100)
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), testDuration); err != nil {
		t.Fatalf("start auction: %v", err)
	}
	if err := engine.PlaceBid(dave, 1, big.NewInt(10)); err != nil {
		t.Fatalf("bid: %v", err)
	}

	if err := engine.WithdrawBid(dave, 1); !errors.Is(err, ErrWinningBidLocked) {
		t.Fatalf("leader withdrawal must be locked, got %v", err)
	}
	if err := engine.WithdrawBid(carol, 1); !errors.Is(err, ErrNoBidToWithdraw) {
		t.Fatalf("expected ErrNoBidToWithdraw, got %v", err)
	}

	// Seed a superseded stake that was never pushed back, the case a push
	// refund failure would leave behind.
	stored := state.auctions[1]
	stored.Bids[carol] = big.NewInt(6)
	if err := state.EscrowCredit(1, big.NewInt(6)); err != nil {
		t.Fatalf("seed escrow: %v", err)
	}
	vault := engine.Vault()
	state.setBalance(vault, 16)

	if err := engine.WithdrawBid(carol, 1); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := state.balance(carol); got.Cmp(big.NewInt(106)) != 0 {
		t.Fatalf("carol balance after withdrawal: %s", got)
	}
	if escrow, _ := state.EscrowBalance(1); escrow.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("escrow should hold only the leading stake, got %s", escrow)
	}
	auction, _ := engine.GetAuction(1)
	if _, staked := auction.Bids[carol]; staked {
		t.Fatalf("withdrawn stake should be cleared")
	}
	if evt := emitter.lastOfType(EventTypeBidWithdrawn); evt == nil {
		t.Fatalf("expected bid-withdrawn event")
	} else if evt.Attributes["amount"] != "6" {
		t.Fatalf("unexpected withdrawal attributes: %v", evt.Attributes)
	}

	if err := engine.WithdrawBid(carol, 1); !errors.Is(err, ErrNoBidToWithdraw) {
		t.Fatalf("double withdrawal must fail, got %v", err)
	}
}

func TestEndAuctionSettlesWinner(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, emitter := newTestEngine(state, ledger)
	alice := newTestAddress(0x01)
	dave := newTestAddress(0x04)
	ledger.mint(1, alice)
	state.setBalance(dave, 200)
	if err := engine.SetRoyaltyFeePercent(testAdmin, 5); err != nil {
		t.Fatalf("set royalty: %v", err)
	}

	now := testNow
	engine.SetNowFunc(func() int64 { return now })
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), testDuration); err != nil {
		t.Fatalf("start auction: %v", err)
	}
	if err := engine.PlaceBid(dave, 1, big.NewInt(100)); err != nil {
		t.Fatalf("bid: %v", err)
	}

	if err := engine.EndAuction(dave, 1); !errors.Is(err, ErrAuctionNotYetEnded) {
		t.Fatalf("expected ErrAuctionNotYetEnded, got %v", err)
	}

	now = testNow + testDuration
	if err := engine.EndAuction(dave, 1); err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if owner, _ := ledger.OwnerOf(1); owner != dave {
		t.Fatalf("item should transfer to the winner")
	}
	// Alice is seller and creator: 95 proceeds plus 5 royalty.
	if got := state.balance(alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("seller balance after settlement: %s", got)
	}
	if got := state.balance(dave); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("winner balance after settlement: %s", got)
	}
	if escrow, _ := state.EscrowBalance(1); escrow.Sign() != 0 {
		t.Fatalf("escrow should drain on settlement, got %s", escrow)
	}
	auction, ok := engine.GetAuction(1)
	if !ok || auction.Active {
		t.Fatalf("auction should remain recorded as ended")
	}
	ended := emitter.lastOfType(EventTypeAuctionEnded)
	if ended == nil || ended.Attributes["winner"] == "" {
		t.Fatalf("ended event should carry the winner, got %v", ended)
	}
	if sold := emitter.lastOfType(EventTypeSold); sold == nil {
		t.Fatalf("expected sold event")
	}

	// Settlement is final.
	if err := engine.EndAuction(dave, 1); !errors.Is(err, ErrAuctionNotActive) {
		t.Fatalf("second settlement must fail, got %v", err)
	}
}

func TestEndAuctionNoBidsAndReclaim(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, emitter := newTestEngine(state, ledger)
	alice := newTestAddress(0x01)
	bob := newTestAddress(0x02)
	ledger.mint(1, alice)

	now := testNow
	engine.SetNowFunc(func() int64 { return now })
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), testDuration); err != nil {
		t.Fatalf("start auction: %v", err)
	}
	if err := engine.Reclaim(alice, 1); !errors.Is(err, ErrNothingToReclaim) {
		t.Fatalf("reclaim before the deadline must fail, got %v", err)
	}

	now = testNow + testDuration
	if err := engine.EndAuction(bob, 1); err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if owner, _ := ledger.OwnerOf(1); owner != engine.Vault() {
		t.Fatalf("zero-bid end must not move custody")
	}
	if got := state.balance(alice); got.Sign() != 0 {
		t.Fatalf("zero-bid end must not move value, seller balance %s", got)
	}
	ended := emitter.lastOfType(EventTypeAuctionEnded)
	if ended == nil {
		t.Fatalf("expected ended event")
	}
	if _, hasWinner := ended.Attributes["winner"]; hasWinner {
		t.Fatalf("zero-bid ended event must carry no winner")
	}

	if err := engine.Reclaim(bob, 1); !errors.Is(err, ErrNotSeller) {
		t.Fatalf("only the seller may reclaim, got %v", err)
	}
	if err := engine.Reclaim(alice, 1); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if owner, _ := ledger.OwnerOf(1); owner != alice {
		t.Fatalf("reclaim should return custody to the seller")
	}
	if _, ok := engine.GetAuction(1); ok {
		t.Fatalf("reclaim should clear the auction record")
	}
	if evt := emitter.lastOfType(EventTypeItemReclaimed); evt == nil {
		t.Fatalf("expected item-reclaimed event")
	}
	if err := engine.Reclaim(alice, 1); !errors.Is(err, ErrAuctionNotFound) {
		t.Fatalf("double reclaim must fail, got %v", err)
	}
}

func TestEscrowMatchesRecordedStakes(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, _ := newTestEngine(state, ledger)
	alice := newTestAddress(0x01)
	carol := newTestAddress(0x03)
	dave := newTestAddress(0x04)
	ledger.mint(1, alice)
	state.setBalance(carol, 100)
	state.setBalance(dave, 100)
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), testDuration); err != nil {
		t.Fatalf("start auction: %v", err)
	}

	check := func(step string) {
		t.Helper()
		auction, ok := engine.GetAuction(1)
		if !ok {
			t.Fatalf("%s: auction missing", step)
		}
		sum := big.NewInt(0)
		for _, stake := range auction.Bids {
			sum.Add(sum, stake)
		}
		escrow, err := state.EscrowBalance(1)
		if err != nil {
			t.Fatalf("%s: escrow balance: %v", step, err)
		}
		if sum.Cmp(escrow) != 0 {
			t.Fatalf("%s: recorded stakes %s diverge from escrow %s", step, sum, escrow)
		}
		vault := engine.Vault()
		if got := state.balance(vault); got.Cmp(escrow) != 0 {
			t.Fatalf("%s: vault balance %s diverges from escrow %s", step, got, escrow)
		}
	}

	check("open")
	if err := engine.PlaceBid(carol, 1, big.NewInt(6)); err != nil {
		t.Fatalf("bid: %v", err)
	}
	check("first bid")
	if err := engine.PlaceBid(dave, 1, big.NewInt(10)); err != nil {
		t.Fatalf("outbid: %v", err)
	}
	check("outbid")
	if err := engine.PlaceBid(carol, 1, big.NewInt(11)); err != nil {
		t.Fatalf("rebid: %v", err)
	}
	check("rebid")

	// The leading bid only ever increases.
	prev := big.NewInt(0)
	for _, amount := range []int64{12, 20, 35} {
		if err := engine.PlaceBid(dave, 1, big.NewInt(amount)); err != nil {
			t.Fatalf("bid %d: %v", amount, err)
		}
		auction, _ := engine.GetAuction(1)
		if auction.HighestBid.Cmp(prev) <= 0 {
			t.Fatalf("highest bid must increase strictly: %s after %s", auction.HighestBid, prev)
		}
		prev = auction.HighestBid
		check("raise")
	}
}

func TestReentrantRefundRejected(t *testing.T) {
	state := newMockState()
	ledger := newMockLedger()
	engine, _ := newTestEngine(state, ledger)
	alice := newTestAddress(0x01)
	carol := newTestAddress(0x03)
	dave := newTestAddress(0x04)
	erin := newTestAddress(0x05)
	ledger.mint(1, alice)
	state.setBalance(carol, 100)
	state.setBalance(dave, 100)
	state.setBalance(erin, 100)
	if _, err := engine.StartAuction(alice, 1, big.NewInt(5), testDuration); err != nil {
		t.Fatalf("start auction: %v", err)
	}
	if err := engine.PlaceBid(carol, 1, big.NewInt(6)); err != nil {
		t.Fatalf("bid: %v", err)
	}

	// Re-enter the engine the moment carol's refund lands, as a malicious
	// recipient hook would.
	var innerErr error
	var fired bool
	state.onTransfer = func(_, to [20]byte) {
		if to != carol || fired {
			return
		}
		fired = true
		innerErr = engine.PlaceBid(erin, 1, big.NewInt(50))
	}

	if err := engine.PlaceBid(dave, 1, big.NewInt(10)); err != nil {
		t.Fatalf("outbid: %v", err)
	}
	if !fired {
		t.Fatalf("refund hook never fired")
	}
	if !errors.Is(innerErr, nativecommon.ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall from the nested bid, got %v", innerErr)
	}
	auction, _ := engine.GetAuction(1)
	if auction.HighestBidder != dave {
		t.Fatalf("outer bid should win despite the nested attempt")
	}
	if escrow, _ := state.EscrowBalance(1); escrow.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("escrow after reentrant attempt: %s", escrow)
	}
}
