package state

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"sync"

	"nftmarket/core/types"
	"nftmarket/native/market"
	"nftmarket/storage"
)

const (
	listingKeyPrefix = "market/listing/"
	auctionKeyPrefix = "market/auction/"
	escrowKeyPrefix  = "market/escrow/"
	accountKeyPrefix = "account/"
	sequenceKey      = "market/seq"
	royaltyKey       = "market/params/royaltyPct"
)

// Manager persists marketplace state in a key-value backend. It implements the
// engine's state interface; all values are JSON-encoded with hex identities so
// the stored form is inspectable with plain tooling.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func listingKey(itemID uint64) []byte {
	return []byte(listingKeyPrefix + strconv.FormatUint(itemID, 10))
}

func auctionKey(itemID uint64) []byte {
	return []byte(auctionKeyPrefix + strconv.FormatUint(itemID, 10))
}

func escrowKey(itemID uint64) []byte {
	return []byte(escrowKeyPrefix + strconv.FormatUint(itemID, 10))
}

func accountKey(addr []byte) []byte {
	return []byte(accountKeyPrefix + hex.EncodeToString(addr))
}

type storedListing struct {
	ItemID    uint64 `json:"itemId"`
	Seller    string `json:"seller"`
	Price     string `json:"price"`
	Sequence  uint64 `json:"seq"`
	CreatedAt int64  `json:"createdAt"`
	Active    bool   `json:"active"`
}

type storedAuction struct {
	ItemID        uint64            `json:"itemId"`
	Seller        string            `json:"seller"`
	StartingPrice string            `json:"startingPrice"`
	HighestBid    string            `json:"highestBid"`
	HighestBidder string            `json:"highestBidder,omitempty"`
	Bids          map[string]string `json:"bids,omitempty"`
	EndTime       int64             `json:"endTime"`
	Sequence      uint64            `json:"seq"`
	CreatedAt     int64             `json:"createdAt"`
	Active        bool              `json:"active"`
}

func encodeAddr(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func decodeAddr(raw string) ([20]byte, error) {
	var addr [20]byte
	if raw == "" {
		return addr, nil
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return addr, fmt.Errorf("state: decode address: %w", err)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("state: address must be 20 bytes (got %d)", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func decodeAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("state: decode amount %q", raw)
	}
	return amount, nil
}

// ListingPut sanitises and persists the listing under its item identifier.
func (m *Manager) ListingPut(l *market.Listing) error {
	sanitized, err := market.SanitizeListing(l)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := storedListing{
		ItemID:    sanitized.ItemID,
		Seller:    encodeAddr(sanitized.Seller),
		Price:     sanitized.Price.String(),
		Sequence:  sanitized.Sequence,
		CreatedAt: sanitized.CreatedAt,
		Active:    sanitized.Active,
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return m.db.Put(listingKey(sanitized.ItemID), raw)
}

func decodeListing(raw []byte) (*market.Listing, error) {
	var stored storedListing
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	seller, err := decodeAddr(stored.Seller)
	if err != nil {
		return nil, err
	}
	price, err := decodeAmount(stored.Price)
	if err != nil {
		return nil, err
	}
	return &market.Listing{
		ItemID:    stored.ItemID,
		Seller:    seller,
		Price:     price,
		Sequence:  stored.Sequence,
		CreatedAt: stored.CreatedAt,
		Active:    stored.Active,
	}, nil
}

// ListingGet loads the listing stored for the item, if any. Read failures and
// corrupt records are logged and read as absent.
func (m *Manager) ListingGet(itemID uint64) (*market.Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	has, err := m.db.Has(listingKey(itemID))
	if err != nil {
		slog.Error("listing read failed", "item", itemID, "error", err)
		return nil, false
	}
	if !has {
		return nil, false
	}
	raw, err := m.db.Get(listingKey(itemID))
	if err != nil {
		slog.Error("listing read failed", "item", itemID, "error", err)
		return nil, false
	}
	listing, err := decodeListing(raw)
	if err != nil {
		slog.Error("corrupt listing record", "item", itemID, "error", err)
		return nil, false
	}
	return listing, true
}

// ListingDelete clears the listing for the item.
func (m *Manager) ListingDelete(itemID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Delete(listingKey(itemID))
}

// AuctionPut sanitises and persists the auction under its item identifier.
func (m *Manager) AuctionPut(a *market.Auction) error {
	sanitized, err := market.SanitizeAuction(a)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := storedAuction{
		ItemID:        sanitized.ItemID,
		Seller:        encodeAddr(sanitized.Seller),
		StartingPrice: sanitized.StartingPrice.String(),
		HighestBid:    sanitized.HighestBid.String(),
		EndTime:       sanitized.EndTime,
		Sequence:      sanitized.Sequence,
		CreatedAt:     sanitized.CreatedAt,
		Active:        sanitized.Active,
	}
	if sanitized.HasLeader() {
		stored.HighestBidder = encodeAddr(sanitized.HighestBidder)
	}
	if len(sanitized.Bids) > 0 {
		stored.Bids = make(map[string]string, len(sanitized.Bids))
		for bidder, amount := range sanitized.Bids {
			stored.Bids[encodeAddr(bidder)] = amount.String()
		}
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return m.db.Put(auctionKey(sanitized.ItemID), raw)
}

func decodeAuction(raw []byte) (*market.Auction, error) {
	var stored storedAuction
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	seller, err := decodeAddr(stored.Seller)
	if err != nil {
		return nil, err
	}
	leader, err := decodeAddr(stored.HighestBidder)
	if err != nil {
		return nil, err
	}
	startingPrice, err := decodeAmount(stored.StartingPrice)
	if err != nil {
		return nil, err
	}
	highestBid, err := decodeAmount(stored.HighestBid)
	if err != nil {
		return nil, err
	}
	bids := make(map[[20]byte]*big.Int, len(stored.Bids))
	for rawBidder, rawAmount := range stored.Bids {
		bidder, err := decodeAddr(rawBidder)
		if err != nil {
			return nil, err
		}
		amount, err := decodeAmount(rawAmount)
		if err != nil {
			return nil, err
		}
		if amount.Sign() > 0 {
			bids[bidder] = amount
		}
	}
	return &market.Auction{
		ItemID:        stored.ItemID,
		Seller:        seller,
		StartingPrice: startingPrice,
		HighestBid:    highestBid,
		HighestBidder: leader,
		Bids:          bids,
		EndTime:       stored.EndTime,
		Sequence:      stored.Sequence,
		CreatedAt:     stored.CreatedAt,
		Active:        stored.Active,
	}, nil
}

// AuctionGet loads the auction stored for the item, if any. Read failures and
// corrupt records are logged and read as absent.
func (m *Manager) AuctionGet(itemID uint64) (*market.Auction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	has, err := m.db.Has(auctionKey(itemID))
	if err != nil {
		slog.Error("auction read failed", "item", itemID, "error", err)
		return nil, false
	}
	if !has {
		return nil, false
	}
	raw, err := m.db.Get(auctionKey(itemID))
	if err != nil {
		slog.Error("auction read failed", "item", itemID, "error", err)
		return nil, false
	}
	auction, err := decodeAuction(raw)
	if err != nil {
		slog.Error("corrupt auction record", "item", itemID, "error", err)
		return nil, false
	}
	return auction, true
}

// AuctionDelete clears the auction record for the item.
func (m *Manager) AuctionDelete(itemID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Delete(auctionKey(itemID))
}

// NextSequence allocates the next value of the shared monotonic counter.
// Values only ever increase and are never reused.
func (m *Manager) NextSequence() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := uint64(1)
	has, err := m.db.Has([]byte(sequenceKey))
	if err != nil {
		return 0, err
	}
	if has {
		raw, err := m.db.Get([]byte(sequenceKey))
		if err != nil {
			return 0, err
		}
		prev, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("state: corrupt sequence: %w", err)
		}
		next = prev + 1
	}
	if err := m.db.Put([]byte(sequenceKey), []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

// EscrowCredit increases the escrow balance tracked for the item's auction.
func (m *Manager) EscrowCredit(itemID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative escrow credit")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.escrowBalance(itemID)
	if err != nil {
		return err
	}
	current.Add(current, amount)
	return m.db.Put(escrowKey(itemID), []byte(current.String()))
}

// EscrowDebit decreases the escrow balance tracked for the item's auction.
func (m *Manager) EscrowDebit(itemID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative escrow debit")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.escrowBalance(itemID)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("state: escrow balance underflow")
	}
	current.Sub(current, amount)
	if current.Sign() == 0 {
		return m.db.Delete(escrowKey(itemID))
	}
	return m.db.Put(escrowKey(itemID), []byte(current.String()))
}

// EscrowBalance reports the escrow balance tracked for the item's auction.
func (m *Manager) EscrowBalance(itemID uint64) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrowBalance(itemID)
}

func (m *Manager) escrowBalance(itemID uint64) (*big.Int, error) {
	has, err := m.db.Has(escrowKey(itemID))
	if err != nil {
		return nil, err
	}
	if !has {
		return big.NewInt(0), nil
	}
	raw, err := m.db.Get(escrowKey(itemID))
	if err != nil {
		return nil, err
	}
	return decodeAmount(string(raw))
}

// RoyaltyPercentGet reads the persisted royalty percentage.
func (m *Manager) RoyaltyPercentGet() (uint32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	has, err := m.db.Has([]byte(royaltyKey))
	if err != nil {
		return 0, false, err
	}
	if !has {
		return 0, false, nil
	}
	raw, err := m.db.Get([]byte(royaltyKey))
	if err != nil {
		return 0, false, err
	}
	pct, err := strconv.ParseUint(string(raw), 10, 32)
	if err != nil {
		return 0, false, fmt.Errorf("state: corrupt royalty percent: %w", err)
	}
	return uint32(pct), true, nil
}

// RoyaltyPercentPut persists the royalty percentage.
func (m *Manager) RoyaltyPercentPut(percent uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if percent > 100 {
		return fmt.Errorf("state: royalty percent out of range: %d", percent)
	}
	return m.db.Put([]byte(royaltyKey), []byte(strconv.FormatUint(uint64(percent), 10)))
}

type storedAccount struct {
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

func (m *Manager) loadAccount(addr []byte) (*types.Account, error) {
	has, err := m.db.Has(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !has {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	raw, err := m.db.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	balance, err := decodeAmount(stored.Balance)
	if err != nil {
		return nil, err
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

func (m *Manager) storeAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	balance := big.NewInt(0)
	if account.Balance != nil {
		if account.Balance.Sign() < 0 {
			return fmt.Errorf("state: negative balance")
		}
		balance = account.Balance
	}
	raw, err := json.Marshal(storedAccount{Nonce: account.Nonce, Balance: balance.String()})
	if err != nil {
		return err
	}
	return m.db.Put(accountKey(addr), raw)
}

// GetAccount loads the account for the address, returning a zero-balance
// account when none is stored.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadAccount(addr)
}

// PutAccount persists the account for the address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeAccount(addr, account)
}

// TransferBalance atomically moves spendable balance between two accounts.
// The debit and credit run under one lock, so concurrent operations that touch
// the same account cannot interleave read-modify-write cycles and lose an
// update. Overdrafts fail with market.ErrInsufficientFunds before any write.
func (m *Manager) TransferBalance(from, to []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer")
	}
	if amount.Sign() == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fromAcc, err := m.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return market.ErrInsufficientFunds
	}
	if bytes.Equal(from, to) {
		return nil
	}
	toAcc, err := m.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := m.storeAccount(from, fromAcc); err != nil {
		return err
	}
	return m.storeAccount(to, toAcc)
}

// Deposit credits the account and returns the new balance. The read and write
// happen under the manager lock so concurrent deposits cannot lose an update.
func (m *Manager) Deposit(addr []byte, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("state: deposit must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	account, err := m.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := m.storeAccount(addr, account); err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}
