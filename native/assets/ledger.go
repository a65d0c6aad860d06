package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"nftmarket/storage"
)

var (
	ErrItemNotFound = errors.New("assets: item not found")
	ErrNotItemOwner = errors.New("assets: transfer from non-owner")
)

const (
	itemKeyPrefix = "assets/item/"
	seqKey        = "assets/seq"
)

// Item is a unique digital asset tracked by the ledger. The creator is
// recorded at mint time and never changes; it is the royalty beneficiary the
// marketplace settles against.
type Item struct {
	ID       uint64   `json:"id"`
	Owner    [20]byte `json:"-"`
	Creator  [20]byte `json:"-"`
	URI      string   `json:"uri"`
	MintedAt int64    `json:"mintedAt"`
}

type storedItem struct {
	ID       uint64 `json:"id"`
	Owner    string `json:"owner"`
	Creator  string `json:"creator"`
	URI      string `json:"uri"`
	MintedAt int64  `json:"mintedAt"`
}

// Ledger is the asset-custody provider consumed by the marketplace engine.
// Items are minted under a monotonically increasing sequence; identifiers are
// never reused.
type Ledger struct {
	mu    sync.Mutex
	db    storage.Database
	nowFn func() int64
}

// NewLedger constructs a ledger over the supplied database.
func NewLedger(db storage.Database) *Ledger {
	return &Ledger{
		db:    db,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source, primarily used in tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func itemKey(id uint64) []byte {
	return []byte(itemKeyPrefix + strconv.FormatUint(id, 10))
}

func encodeItem(item *Item) ([]byte, error) {
	stored := storedItem{
		ID:       item.ID,
		Owner:    encodeAddr(item.Owner),
		Creator:  encodeAddr(item.Creator),
		URI:      item.URI,
		MintedAt: item.MintedAt,
	}
	return json.Marshal(stored)
}

func decodeItem(raw []byte) (*Item, error) {
	var stored storedItem
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("assets: decode item: %w", err)
	}
	owner, err := decodeAddr(stored.Owner)
	if err != nil {
		return nil, err
	}
	creator, err := decodeAddr(stored.Creator)
	if err != nil {
		return nil, err
	}
	return &Item{
		ID:       stored.ID,
		Owner:    owner,
		Creator:  creator,
		URI:      stored.URI,
		MintedAt: stored.MintedAt,
	}, nil
}

// Mint creates a new item owned (and created) by the supplied address.
func (l *Ledger) Mint(owner [20]byte, uri string) (*Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := uint64(1)
	if has, err := l.db.Has([]byte(seqKey)); err != nil {
		return nil, err
	} else if has {
		raw, err := l.db.Get([]byte(seqKey))
		if err != nil {
			return nil, err
		}
		prev, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("assets: corrupt sequence: %w", err)
		}
		next = prev + 1
	}
	item := &Item{
		ID:       next,
		Owner:    owner,
		Creator:  owner,
		URI:      strings.TrimSpace(uri),
		MintedAt: l.nowFn(),
	}
	raw, err := encodeItem(item)
	if err != nil {
		return nil, err
	}
	if err := l.db.Put(itemKey(next), raw); err != nil {
		return nil, err
	}
	if err := l.db.Put([]byte(seqKey), []byte(strconv.FormatUint(next, 10))); err != nil {
		return nil, err
	}
	return item, nil
}

// Get returns the full item record.
func (l *Ledger) Get(id uint64) (*Item, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(id)
}

func (l *Ledger) load(id uint64) (*Item, error) {
	has, err := l.db.Has(itemKey(id))
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrItemNotFound
	}
	raw, err := l.db.Get(itemKey(id))
	if err != nil {
		return nil, err
	}
	return decodeItem(raw)
}

// OwnerOf reports the current custodian of the item.
func (l *Ledger) OwnerOf(id uint64) ([20]byte, error) {
	item, err := l.Get(id)
	if err != nil {
		return [20]byte{}, err
	}
	return item.Owner, nil
}

// CreatorOf reports the original minter of the item.
func (l *Ledger) CreatorOf(id uint64) ([20]byte, error) {
	item, err := l.Get(id)
	if err != nil {
		return [20]byte{}, err
	}
	return item.Creator, nil
}

// Transfer moves custody of the item. It fails if from does not currently hold
// the item.
func (l *Ledger) Transfer(from, to [20]byte, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, err := l.load(id)
	if err != nil {
		return err
	}
	if item.Owner != from {
		return ErrNotItemOwner
	}
	item.Owner = to
	raw, err := encodeItem(item)
	if err != nil {
		return err
	}
	return l.db.Put(itemKey(id), raw)
}
