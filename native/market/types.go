package market

import (
	"fmt"
	"math/big"
)

// Listing captures a fixed-price sale offer. While Active is true the
// marketplace vault holds custody of the item and Price is positive.
type Listing struct {
	ItemID    uint64
	Seller    [20]byte
	Price     *big.Int
	Sequence  uint64
	CreatedAt int64
	Active    bool
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// Auction captures a time-boxed English auction. Bids maps each bidder to the
// amount currently at stake and not yet refunded or withdrawn; while the
// auction is active the per-item escrow balance equals the sum of all nonzero
// entries.
type Auction struct {
	ItemID        uint64
	Seller        [20]byte
	StartingPrice *big.Int
	HighestBid    *big.Int
	HighestBidder [20]byte
	Bids          map[[20]byte]*big.Int
	EndTime       int64
	Sequence      uint64
	CreatedAt     int64
	Active        bool
}

// HasLeader reports whether any bid has been recorded.
func (a *Auction) HasLeader() bool {
	if a == nil {
		return false
	}
	return a.HighestBidder != ([20]byte{})
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.StartingPrice != nil {
		clone.StartingPrice = new(big.Int).Set(a.StartingPrice)
	} else {
		clone.StartingPrice = big.NewInt(0)
	}
	if a.HighestBid != nil {
		clone.HighestBid = new(big.Int).Set(a.HighestBid)
	} else {
		clone.HighestBid = big.NewInt(0)
	}
	clone.Bids = make(map[[20]byte]*big.Int, len(a.Bids))
	for bidder, amount := range a.Bids {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		clone.Bids[bidder] = new(big.Int).Set(amount)
	}
	return &clone
}

// SanitizeListing validates and normalises a listing, returning a cloned
// instance with a non-nil price. The original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("listing price must be non-negative")
	}
	if clone.Active && clone.Price.Sign() == 0 {
		return nil, fmt.Errorf("active listing requires a positive price")
	}
	return clone, nil
}

// SanitizeAuction validates and normalises an auction, returning a cloned
// instance with non-nil amounts and only nonzero bid entries.
func SanitizeAuction(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("nil auction")
	}
	clone := a.Clone()
	if clone.StartingPrice.Sign() <= 0 {
		return nil, fmt.Errorf("auction starting price must be positive")
	}
	if clone.HighestBid.Sign() < 0 {
		return nil, fmt.Errorf("auction highest bid must be non-negative")
	}
	if clone.Active && clone.HasLeader() {
		stake, ok := clone.Bids[clone.HighestBidder]
		if !ok || stake.Cmp(clone.HighestBid) != 0 {
			return nil, fmt.Errorf("auction leader stake mismatch")
		}
	}
	return clone, nil
}
