package market

import "math/big"

// List takes custody of the item and stores a new active listing. The caller
// must currently own the item and the price must be positive.
func (e *Engine) List(caller [20]byte, itemID uint64, price *big.Int) (*Listing, error) {
	release, err := e.begin(itemID)
	if err != nil {
		return nil, err
	}
	defer release()
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
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
	listing := &Listing{
		ItemID:    itemID,
		Seller:    caller,
		Price:     cloneBigInt(price),
		Sequence:  seq,
		CreatedAt: e.now(),
		Active:    true,
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(listing))
	return listing.Clone(), nil
}

// Cancel returns custody of the item to the seller and clears the listing.
func (e *Engine) Cancel(caller [20]byte, itemID uint64) error {
	release, err := e.begin(itemID)
	if err != nil {
		return err
	}
	defer release()
	listing, ok := e.state.ListingGet(itemID)
	if !ok || !listing.Active {
		return ErrNoActiveListing
	}
	if listing.Seller != caller {
		return ErrNotSeller
	}
	if err := e.ledger.Transfer(e.vault, caller, itemID); err != nil {
		return err
	}
	if err := e.state.ListingDelete(itemID); err != nil {
		return err
	}
	e.emit(NewUnlistedEvent(listing))
	return nil
}

// Buy performs a fixed-price purchase: it verifies the payment covers the
// listing price, routes seller proceeds and royalty through the settlement
// policy, transfers the item to the buyer and clears the listing. Exactly the
// listing price leaves the buyer's balance; any surplus in payment stays put.
func (e *Engine) Buy(caller [20]byte, itemID uint64, payment *big.Int) error {
	release, err := e.begin(itemID)
	if err != nil {
		return err
	}
	defer release()
	listing, ok := e.state.ListingGet(itemID)
	if !ok || !listing.Active {
		return ErrNoActiveListing
	}
	if payment == nil || payment.Cmp(listing.Price) < 0 {
		return ErrInsufficientFunds
	}
	if ok, err := e.hasBalance(caller, listing.Price); err != nil {
		return err
	} else if !ok {
		return ErrInsufficientFunds
	}
	// Beneficiary and split are fixed before any custody moves.
	if err := e.transferValue(caller, e.vault, listing.Price); err != nil {
		return err
	}
	if err := e.settle(itemID, listing.Seller, caller, listing.Price); err != nil {
		return err
	}
	if err := e.state.ListingDelete(itemID); err != nil {
		return err
	}
	e.emit(NewUnlistedEvent(listing))
	return nil
}

// GetListing returns the stored listing for the item, if any.
func (e *Engine) GetListing(itemID uint64) (*Listing, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	listing, ok := e.state.ListingGet(itemID)
	if !ok {
		return nil, false
	}
	return listing.Clone(), true
}
