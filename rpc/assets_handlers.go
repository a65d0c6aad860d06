package rpc

import (
	"math/big"

	"nftmarket/core/identity"
	"nftmarket/native/assets"
)

type mintParams struct {
	Owner string `json:"owner"`
	URI   string `json:"uri,omitempty"`
}

type addressParams struct {
	Address string `json:"address"`
}

type depositParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type itemJSON struct {
	ID       uint64 `json:"id"`
	Owner    string `json:"owner"`
	Creator  string `json:"creator"`
	URI      string `json:"uri,omitempty"`
	MintedAt int64  `json:"mintedAt"`
}

func itemView(item *assets.Item) itemJSON {
	return itemJSON{
		ID:       item.ID,
		Owner:    identity.FormatAddress(item.Owner),
		Creator:  identity.FormatAddress(item.Creator),
		URI:      item.URI,
		MintedAt: item.MintedAt,
	}
}

func (s *Server) handleMint(req *RPCRequest) (interface{}, *RPCError) {
	var params mintParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseCaller(params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	item, err := s.ledger.Mint(owner, params.URI)
	if err != nil {
		return nil, marketError(err)
	}
	return itemView(item), nil
}

func (s *Server) handleGetItem(req *RPCRequest) (interface{}, *RPCError) {
	var params itemParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	item, err := s.ledger.Get(params.Item)
	if err != nil {
		return nil, marketError(err)
	}
	return itemView(item), nil
}

func (s *Server) handleDeposit(req *RPCRequest) (interface{}, *RPCError) {
	var params depositParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseCaller(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount("deposit", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if amount.Sign() <= 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "deposit amount must be positive"}
	}
	balance, err := s.accounts.Deposit(addr[:], amount)
	if err != nil {
		return nil, marketError(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

func (s *Server) handleBalance(req *RPCRequest) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseCaller(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	account, err := s.accounts.GetAccount(addr[:])
	if err != nil {
		return nil, marketError(err)
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		balance = account.Balance
	}
	return map[string]string{"balance": balance.String()}, nil
}
