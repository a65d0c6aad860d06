package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeListed         = "market.listed"
	EventTypeUnlisted       = "market.unlisted"
	EventTypeSold           = "market.sold"
	EventTypeAuctionStarted = "market.auction_started"
	EventTypeBidPlaced      = "market.bid_placed"
	EventTypeBidWithdrawn   = "market.bid_withdrawn"
	EventTypeAuctionEnded   = "market.auction_ended"
	EventTypeItemReclaimed  = "market.item_reclaimed"
	EventTypeRoyaltyUpdated = "market.royalty_updated"
)

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func itemAttr(itemID uint64) string {
	return strconv.FormatUint(itemID, 10)
}

// NewListedEvent returns the canonical event payload for a new listing.
func NewListedEvent(l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: EventTypeListed, Attributes: attrs}
	}
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return &types.Event{Type: EventTypeListed, Attributes: attrs}
	}
	attrs["item"] = itemAttr(sanitized.ItemID)
	attrs["seller"] = hexAddr(sanitized.Seller)
	attrs["price"] = sanitized.Price.String()
	attrs["seq"] = strconv.FormatUint(sanitized.Sequence, 10)
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	return &types.Event{Type: EventTypeListed, Attributes: attrs}
}

// NewUnlistedEvent returns the canonical event payload emitted when a listing
// is cleared, whether by cancellation or sale.
func NewUnlistedEvent(l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l != nil {
		attrs["item"] = itemAttr(l.ItemID)
		attrs["seller"] = hexAddr(l.Seller)
	}
	return &types.Event{Type: EventTypeUnlisted, Attributes: attrs}
}

// NewSoldEvent returns the canonical event payload for a completed settlement.
func NewSoldEvent(itemID uint64, seller, winner, beneficiary [20]byte, amount, proceeds, fee *big.Int) *types.Event {
	attrs := map[string]string{
		"item":        itemAttr(itemID),
		"seller":      hexAddr(seller),
		"winner":      hexAddr(winner),
		"beneficiary": hexAddr(beneficiary),
		"amount":      cloneBigInt(amount).String(),
		"proceeds":    cloneBigInt(proceeds).String(),
		"royalty":     cloneBigInt(fee).String(),
	}
	return &types.Event{Type: EventTypeSold, Attributes: attrs}
}

// NewAuctionStartedEvent returns the canonical payload for a freshly opened
// auction, carrying the computed deadline.
func NewAuctionStartedEvent(a *Auction) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: EventTypeAuctionStarted, Attributes: attrs}
	}
	sanitized, err := SanitizeAuction(a)
	if err != nil {
		return &types.Event{Type: EventTypeAuctionStarted, Attributes: attrs}
	}
	attrs["item"] = itemAttr(sanitized.ItemID)
	attrs["seller"] = hexAddr(sanitized.Seller)
	attrs["startingPrice"] = sanitized.StartingPrice.String()
	attrs["endTime"] = strconv.FormatInt(sanitized.EndTime, 10)
	attrs["seq"] = strconv.FormatUint(sanitized.Sequence, 10)
	return &types.Event{Type: EventTypeAuctionStarted, Attributes: attrs}
}

// NewBidPlacedEvent returns the canonical payload for an accepted bid. When a
// previous leader was refunded, the refund is carried alongside.
func NewBidPlacedEvent(a *Auction, bidder [20]byte, amount *big.Int, prevLeader [20]byte, prevBid *big.Int) *types.Event {
	attrs := map[string]string{
		"bidder": hexAddr(bidder),
		"amount": cloneBigInt(amount).String(),
	}
	if a != nil {
		attrs["item"] = itemAttr(a.ItemID)
	}
	if prevLeader != ([20]byte{}) {
		attrs["refunded"] = hexAddr(prevLeader)
		attrs["refundAmount"] = cloneBigInt(prevBid).String()
	}
	return &types.Event{Type: EventTypeBidPlaced, Attributes: attrs}
}

// NewBidWithdrawnEvent returns the canonical payload for a voluntary
// withdrawal of a non-winning stake.
func NewBidWithdrawnEvent(a *Auction, bidder [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"bidder": hexAddr(bidder),
		"amount": cloneBigInt(amount).String(),
	}
	if a != nil {
		attrs["item"] = itemAttr(a.ItemID)
	}
	return &types.Event{Type: EventTypeBidWithdrawn, Attributes: attrs}
}

// NewAuctionEndedEvent returns the canonical payload emitted when an auction
// flips to ended. A zero-bid auction carries no winner attribute.
func NewAuctionEndedEvent(a *Auction) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["item"] = itemAttr(a.ItemID)
		attrs["seller"] = hexAddr(a.Seller)
		if a.HasLeader() {
			attrs["winner"] = hexAddr(a.HighestBidder)
			attrs["winningBid"] = cloneBigInt(a.HighestBid).String()
		}
	}
	return &types.Event{Type: EventTypeAuctionEnded, Attributes: attrs}
}

// NewItemReclaimedEvent returns the canonical payload emitted when a seller
// recovers an unsold item.
func NewItemReclaimedEvent(a *Auction) *types.Event {
	attrs := make(map[string]string)
	if a != nil {
		attrs["item"] = itemAttr(a.ItemID)
		attrs["seller"] = hexAddr(a.Seller)
	}
	return &types.Event{Type: EventTypeItemReclaimed, Attributes: attrs}
}

// NewRoyaltyUpdatedEvent returns the canonical payload for a royalty
// percentage change.
func NewRoyaltyUpdatedEvent(caller [20]byte, percent uint32) *types.Event {
	attrs := map[string]string{
		"admin":   hexAddr(caller),
		"percent": strconv.FormatUint(uint64(percent), 10),
	}
	return &types.Event{Type: EventTypeRoyaltyUpdated, Attributes: attrs}
}
