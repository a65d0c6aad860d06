package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"

	"nftmarket/core/identity"
	"nftmarket/native/market"
)

type listParams struct {
	Caller string `json:"caller"`
	Item   uint64 `json:"item"`
	Price  string `json:"price"`
}

type itemCallerParams struct {
	Caller string `json:"caller"`
	Item   uint64 `json:"item"`
}

type buyParams struct {
	Caller  string `json:"caller"`
	Item    uint64 `json:"item"`
	Payment string `json:"payment"`
}

type startAuctionParams struct {
	Caller        string `json:"caller"`
	Item          uint64 `json:"item"`
	StartingPrice string `json:"startingPrice"`
	Duration      int64  `json:"duration"`
}

type bidParams struct {
	Caller string `json:"caller"`
	Item   uint64 `json:"item"`
	Amount string `json:"amount"`
}

type itemParams struct {
	Item uint64 `json:"item"`
}

type royaltyParams struct {
	Caller  string `json:"caller"`
	Percent uint32 `json:"percent"`
}

type listingJSON struct {
	Item      uint64 `json:"item"`
	Seller    string `json:"seller"`
	Price     string `json:"price"`
	Seq       uint64 `json:"seq"`
	CreatedAt int64  `json:"createdAt"`
	Active    bool   `json:"active"`
}

type auctionJSON struct {
	Item          uint64            `json:"item"`
	Seller        string            `json:"seller"`
	StartingPrice string            `json:"startingPrice"`
	HighestBid    string            `json:"highestBid"`
	HighestBidder string            `json:"highestBidder,omitempty"`
	Bids          map[string]string `json:"bids,omitempty"`
	EndTime       int64             `json:"endTime"`
	Seq           uint64            `json:"seq"`
	CreatedAt     int64             `json:"createdAt"`
	Active        bool              `json:"active"`
}

func listingView(l *market.Listing) listingJSON {
	return listingJSON{
		Item:      l.ItemID,
		Seller:    identity.FormatAddress(l.Seller),
		Price:     l.Price.String(),
		Seq:       l.Sequence,
		CreatedAt: l.CreatedAt,
		Active:    l.Active,
	}
}

func auctionView(a *market.Auction) auctionJSON {
	view := auctionJSON{
		Item:          a.ItemID,
		Seller:        identity.FormatAddress(a.Seller),
		StartingPrice: a.StartingPrice.String(),
		HighestBid:    a.HighestBid.String(),
		EndTime:       a.EndTime,
		Seq:           a.Sequence,
		CreatedAt:     a.CreatedAt,
		Active:        a.Active,
	}
	if a.HasLeader() {
		view.HighestBidder = identity.FormatAddress(a.HighestBidder)
	}
	if len(a.Bids) > 0 {
		view.Bids = make(map[string]string, len(a.Bids))
		for bidder, amount := range a.Bids {
			view.Bids[identity.FormatAddress(bidder)] = amount.String()
		}
	}
	return view
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
	}
	return nil
}

func parseCaller(raw string) ([20]byte, *RPCError) {
	addr, err := identity.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	return addr, nil
}

func parseAmount(field, raw string) (*big.Int, *RPCError) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid %s amount %q", field, raw)}
	}
	return amount, nil
}

func (s *Server) handleList(req *RPCRequest) (interface{}, *RPCError) {
	var params listParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmount("price", params.Price)
	if rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.engine.List(caller, params.Item, price)
	if err != nil {
		return nil, marketError(err)
	}
	return listingView(listing), nil
}

func (s *Server) handleCancel(req *RPCRequest) (interface{}, *RPCError) {
	var params itemCallerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Cancel(caller, params.Item); err != nil {
		return nil, marketError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleBuy(req *RPCRequest) (interface{}, *RPCError) {
	var params buyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	payment, rpcErr := parseAmount("payment", params.Payment)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Buy(caller, params.Item, payment); err != nil {
		return nil, marketError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleStartAuction(req *RPCRequest) (interface{}, *RPCError) {
	var params startAuctionParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	startingPrice, rpcErr := parseAmount("startingPrice", params.StartingPrice)
	if rpcErr != nil {
		return nil, rpcErr
	}
	auction, err := s.engine.StartAuction(caller, params.Item, startingPrice, params.Duration)
	if err != nil {
		return nil, marketError(err)
	}
	return auctionView(auction), nil
}

func (s *Server) handlePlaceBid(req *RPCRequest) (interface{}, *RPCError) {
	var params bidParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("bid", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.PlaceBid(caller, params.Item, amount); err != nil {
		return nil, marketError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleWithdrawBid(req *RPCRequest) (interface{}, *RPCError) {
	var params itemCallerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.WithdrawBid(caller, params.Item); err != nil {
		return nil, marketError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleEndAuction(req *RPCRequest) (interface{}, *RPCError) {
	var params itemCallerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.EndAuction(caller, params.Item); err != nil {
		return nil, marketError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleReclaim(req *RPCRequest) (interface{}, *RPCError) {
	var params itemCallerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.Reclaim(caller, params.Item); err != nil {
		return nil, marketError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleGetListing(req *RPCRequest) (interface{}, *RPCError) {
	var params itemParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	listing, ok := s.engine.GetListing(params.Item)
	if !ok {
		return nil, &RPCError{Code: codeMarketNotFound, Message: market.ErrNoActiveListing.Error()}
	}
	return listingView(listing), nil
}

func (s *Server) handleGetAuction(req *RPCRequest) (interface{}, *RPCError) {
	var params itemParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	auction, ok := s.engine.GetAuction(params.Item)
	if !ok {
		return nil, &RPCError{Code: codeMarketNotFound, Message: market.ErrAuctionNotFound.Error()}
	}
	return auctionView(auction), nil
}

func (s *Server) handleSetRoyalty(req *RPCRequest) (interface{}, *RPCError) {
	var params royaltyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.engine.SetRoyaltyFeePercent(caller, params.Percent); err != nil {
		return nil, marketError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleGetRoyalty(_ *RPCRequest) (interface{}, *RPCError) {
	pct, err := s.engine.RoyaltyFeePercent()
	if err != nil {
		return nil, marketError(err)
	}
	return map[string]uint32{"percent": pct}, nil
}
