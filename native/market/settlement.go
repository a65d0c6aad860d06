package market

import "math/big"

// RoyaltyFeePercent reports the configured royalty percentage. An unset value
// reads as zero.
func (e *Engine) RoyaltyFeePercent() (uint32, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	pct, ok, err := e.state.RoyaltyPercentGet()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return pct, nil
}

// SetRoyaltyFeePercent updates the royalty percentage applied to every
// settlement. Restricted to administrators; the value must not exceed 100.
func (e *Engine) SetRoyaltyFeePercent(caller [20]byte, percent uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.access == nil || !e.access.IsAdministrator(caller) {
		return ErrNotAdmin
	}
	if percent > 100 {
		return ErrInvalidPercentage
	}
	if err := e.state.RoyaltyPercentPut(percent); err != nil {
		return err
	}
	e.emit(NewRoyaltyUpdatedEvent(caller, percent))
	return nil
}

// splitProceeds computes the royalty split. Integer truncation reduces the
// royalty fee, so the remainder accrues to the seller; the two parts always
// sum to the winning amount exactly.
func splitProceeds(amount *big.Int, percent uint32) (proceeds, fee *big.Int) {
	total := cloneBigInt(amount)
	fee = new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(percent)))
	fee.Div(fee, big.NewInt(100))
	proceeds = new(big.Int).Sub(total, fee)
	return proceeds, fee
}

// settle transfers the item from the vault to the winner and routes the
// winning amount between seller and royalty beneficiary. The beneficiary is
// resolved from the asset ledger before the custody transfer so the winner can
// never become their own royalty recipient.
func (e *Engine) settle(itemID uint64, seller, winner [20]byte, winningAmount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	amount := cloneBigInt(winningAmount)
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pct, err := e.RoyaltyFeePercent()
	if err != nil {
		return err
	}
	beneficiary, err := e.ledger.CreatorOf(itemID)
	if err != nil {
		return err
	}
	if beneficiary == ([20]byte{}) {
		beneficiary = e.feeTreasury
	}
	proceeds, fee := splitProceeds(amount, pct)
	if err := e.ledger.Transfer(e.vault, winner, itemID); err != nil {
		return err
	}
	if proceeds.Sign() > 0 {
		if err := e.transferValue(e.vault, seller, proceeds); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.transferValue(e.vault, beneficiary, fee); err != nil {
			return err
		}
	}
	e.emit(NewSoldEvent(itemID, seller, winner, beneficiary, amount, proceeds, fee))
	return nil
}
