package market

import (
	"errors"
	"math/big"
	"strconv"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/events"
	"nftmarket/core/types"
	nativecommon "nftmarket/native/common"
)

var (
	errNilState  = errors.New("market engine: state not configured")
	errNilLedger = errors.New("market engine: asset ledger not configured")
)

const moduleName = "market"

// engineState is the persistence surface the engine mutates. Listings and
// auctions are keyed by the raw item identifier; NextSequence allocates the
// monotonically increasing counter recorded on each entry.
type engineState interface {
	ListingPut(*Listing) error
	ListingGet(itemID uint64) (*Listing, bool)
	ListingDelete(itemID uint64) error
	AuctionPut(*Auction) error
	AuctionGet(itemID uint64) (*Auction, bool)
	AuctionDelete(itemID uint64) error
	NextSequence() (uint64, error)
	EscrowCredit(itemID uint64, amount *big.Int) error
	EscrowDebit(itemID uint64, amount *big.Int) error
	EscrowBalance(itemID uint64) (*big.Int, error)
	RoyaltyPercentGet() (uint32, bool, error)
	RoyaltyPercentPut(uint32) error
	GetAccount(addr []byte) (*types.Account, error)
	TransferBalance(from, to []byte, amount *big.Int) error
}

// AssetLedger is the custody provider the engine consumes. Transfer fails when
// from does not currently hold the item.
type AssetLedger interface {
	OwnerOf(itemID uint64) ([20]byte, error)
	CreatorOf(itemID uint64) ([20]byte, error)
	Transfer(from, to [20]byte, itemID uint64) error
}

// AccessControl answers administrator checks for restricted operations.
type AccessControl interface {
	IsAdministrator(addr [20]byte) bool
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine owns the listing and auction state machines and the settlement
// routine. All mutating operations run under a per-item lock so a reentrant
// call during an outbound value transfer fails cleanly instead of observing
// half-updated state.
type Engine struct {
	state       engineState
	ledger      AssetLedger
	access      AccessControl
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	locks       *nativecommon.LockSet
	vault       [20]byte
	feeTreasury [20]byte
	nowFn       func() int64
}

// NewEngine creates a market engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		locks:   nativecommon.NewLockSet(),
		vault:   VaultAddress(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// VaultAddress derives the address under which the marketplace holds custody
// of items and escrowed value.
func VaultAddress() [20]byte {
	hash := ethcrypto.Keccak256([]byte("nftmarket/market/vault"))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssetLedger configures the custody provider.
func (e *Engine) SetAssetLedger(ledger AssetLedger) { e.ledger = ledger }

// SetAccessControl configures the administrator check used by restricted
// operations.
func (e *Engine) SetAccessControl(access AccessControl) { e.access = access }

// SetPauses configures the module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetFeeTreasury configures the fallback royalty beneficiary used when the
// asset ledger records no creator for an item.
func (e *Engine) SetFeeTreasury(addr [20]byte) { e.feeTreasury = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Vault reports the custody address used by the engine.
func (e *Engine) Vault() [20]byte { return e.vault }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// begin performs the shared entry checks for a mutating operation: module
// pause and the per-item reentrancy lock. The returned release func must be
// deferred by the caller.
func (e *Engine) begin(itemID uint64) (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	key := moduleName + "/" + strconv.FormatUint(itemID, 10)
	if err := e.locks.Acquire(key); err != nil {
		return nil, err
	}
	return func() { e.locks.Release(key) }, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// transferValue moves spendable balance between two accounts. The debit and
// credit run as one atomic step in the state backend, so operations on other
// items can never interleave a read-modify-write cycle on a shared account.
// Zero amounts are a no-op; negative amounts fail before any mutation.
func (e *Engine) transferValue(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return ErrInvalidAmount
	}
	return e.state.TransferBalance(from[:], to[:], amt)
}

// hasBalance reports whether the account can cover the amount without moving
// any value. Used to front-load precondition checks.
func (e *Engine) hasBalance(addr [20]byte, amount *big.Int) (bool, error) {
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return false, err
	}
	acc = ensureAccount(acc)
	return acc.Balance.Cmp(amount) >= 0, nil
}
