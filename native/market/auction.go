package market

import "math/big"

// Durations are bounded so the deadline arithmetic cannot overflow.
const maxAuctionDuration int64 = 365 * 24 * 60 * 60

// StartAuction takes custody of the item and opens a time-boxed English
// auction. The caller must own the item; the starting price must be positive
// and the duration within (0, maxAuctionDuration]. The computed deadline is
// carried on the auction-started event.
func (e *Engine) StartAuction(caller [20]byte, itemID uint64, startingPrice *big.Int, duration int64) (*Auction, error) {
	release, err := e.begin(itemID)
	if err != nil {
		return nil, err
	}
	defer release()
	if startingPrice == nil || startingPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if duration <= 0 || duration > maxAuctionDuration {
		return nil, ErrInvalidDuration
	}
	owner, err := e.ledger.OwnerOf(itemID)
	if err != nil {
		return nil, err
	}
	if owner == e.vault {
		return nil, ErrItemEscrowed
	}
	if owner != caller {
		return nil, ErrNotOwner
	}
	seq, err := e.state.NextSequence()
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(caller, e.vault, itemID); err != nil {
		return nil, err
	}
	now := e.now()
	auction := &Auction{
		ItemID:        itemID,
		Seller:        caller,
		StartingPrice: cloneBigInt(startingPrice),
		HighestBid:    big.NewInt(0),
		Bids:          make(map[[20]byte]*big.Int),
		EndTime:       now + duration,
		Sequence:      seq,
		CreatedAt:     now,
		Active:        true,
	}
	if err := e.state.AuctionPut(auction); err != nil {
		return nil, err
	}
	e.emit(NewAuctionStartedEvent(auction))
	return auction.Clone(), nil
}

// PlaceBid escrows the caller's bid and records them as the new leader. The
// bid must strictly exceed the current floor: the highest bid once one exists,
// the starting price before that (ties are rejected). A superseded leader is
// refunded immediately by a push transfer from the vault.
func (e *Engine) PlaceBid(caller [20]byte, itemID uint64, amount *big.Int) error {
	release, err := e.begin(itemID)
	if err != nil {
		return err
	}
	defer release()
	auction, ok := e.state.AuctionGet(itemID)
	if !ok {
		return ErrAuctionNotFound
	}
	if !auction.Active {
		return ErrAuctionNotActive
	}
	if e.now() >= auction.EndTime {
		return ErrAuctionEnded
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	floor := auction.HighestBid
	if !auction.HasLeader() {
		floor = auction.StartingPrice
	}
	if amount.Cmp(floor) <= 0 {
		return ErrBidTooLow
	}
	if ok, err := e.hasBalance(caller, amount); err != nil {
		return err
	} else if !ok {
		return ErrInsufficientFunds
	}
	prevLeader := auction.HighestBidder
	prevBid := cloneBigInt(auction.HighestBid)

	if err := e.transferValue(caller, e.vault, amount); err != nil {
		return err
	}
	if err := e.state.EscrowCredit(itemID, amount); err != nil {
		return err
	}
	if auction.HasLeader() {
		if err := e.transferValue(e.vault, prevLeader, prevBid); err != nil {
			return err
		}
		if err := e.state.EscrowDebit(itemID, prevBid); err != nil {
			return err
		}
		delete(auction.Bids, prevLeader)
	}
	auction.Bids[caller] = cloneBigInt(amount)
	auction.HighestBid = cloneBigInt(amount)
	auction.HighestBidder = caller
	if err := e.state.AuctionPut(auction); err != nil {
		return err
	}
	e.emit(NewBidPlacedEvent(auction, caller, amount, prevLeader, prevBid))
	return nil
}

// WithdrawBid returns the caller's non-winning stake. The current leader's
// stake is locked until the auction settles; withdrawing it would break the
// bids[highestBidder] == highestBid invariant.
func (e *Engine) WithdrawBid(caller [20]byte, itemID uint64) error {
	release, err := e.begin(itemID)
	if err != nil {
		return err
	}
	defer release()
	auction, ok := e.state.AuctionGet(itemID)
	if !ok {
		return ErrAuctionNotFound
	}
	if !auction.Active {
		return ErrAuctionNotActive
	}
	if e.now() >= auction.EndTime {
		return ErrAuctionEnded
	}
	stake, ok := auction.Bids[caller]
	if !ok || stake == nil || stake.Sign() == 0 {
		return ErrNoBidToWithdraw
	}
	if caller == auction.HighestBidder {
		return ErrWinningBidLocked
	}
	refund := cloneBigInt(stake)
	if err := e.transferValue(e.vault, caller, refund); err != nil {
		return err
	}
	if err := e.state.EscrowDebit(itemID, refund); err != nil {
		return err
	}
	delete(auction.Bids, caller)
	if err := e.state.AuctionPut(auction); err != nil {
		return err
	}
	e.emit(NewBidWithdrawnEvent(auction, caller, refund))
	return nil
}

// EndAuction settles an auction whose deadline has elapsed. Any caller may
// trigger it. With a winner, the winning stake is routed through the
// settlement policy; with zero bids nothing changes hands and the auction is
// merely marked ended (the seller recovers custody via Reclaim).
func (e *Engine) EndAuction(caller [20]byte, itemID uint64) error {
	release, err := e.begin(itemID)
	if err != nil {
		return err
	}
	defer release()
	auction, ok := e.state.AuctionGet(itemID)
	if !ok {
		return ErrAuctionNotFound
	}
	if !auction.Active {
		return ErrAuctionNotActive
	}
	if e.now() < auction.EndTime {
		return ErrAuctionNotYetEnded
	}
	if auction.HasLeader() {
		winner := auction.HighestBidder
		amount := cloneBigInt(auction.HighestBid)
		if err := e.state.EscrowDebit(itemID, amount); err != nil {
			return err
		}
		if err := e.settle(itemID, auction.Seller, winner, amount); err != nil {
			return err
		}
		delete(auction.Bids, winner)
	}
	auction.Active = false
	if err := e.state.AuctionPut(auction); err != nil {
		return err
	}
	e.emit(NewAuctionEndedEvent(auction))
	return nil
}

// Reclaim returns custody of an item to its seller after an auction ended with
// zero bids, and clears the auction record.
func (e *Engine) Reclaim(caller [20]byte, itemID uint64) error {
	release, err := e.begin(itemID)
	if err != nil {
		return err
	}
	defer release()
	auction, ok := e.state.AuctionGet(itemID)
	if !ok {
		return ErrAuctionNotFound
	}
	if auction.Active || auction.HasLeader() {
		return ErrNothingToReclaim
	}
	if auction.Seller != caller {
		return ErrNotSeller
	}
	owner, err := e.ledger.OwnerOf(itemID)
	if err != nil {
		return err
	}
	if owner != e.vault {
		return ErrNothingToReclaim
	}
	if err := e.ledger.Transfer(e.vault, caller, itemID); err != nil {
		return err
	}
	if err := e.state.AuctionDelete(itemID); err != nil {
		return err
	}
	e.emit(NewItemReclaimedEvent(auction))
	return nil
}

// GetAuction returns the stored auction for the item, if any.
func (e *Engine) GetAuction(itemID uint64) (*Auction, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	auction, ok := e.state.AuctionGet(itemID)
	if !ok {
		return nil, false
	}
	return auction.Clone(), true
}
