package scanner

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/onemorebsmith/zdt/src/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrMalformedAmount - entry carries a negative or unparsable amount. Entry
// level only; a scan skips and counts these, it never aborts on them.
var ErrMalformedAmount = fmt.Errorf("malformed amount")

// Normalize converts a raw node entry into a canonical donation. Amounts are
// converted exactly: the integer zatoshi field is preferred, the decimal
// string is parsed without ever passing through a float.
func Normalize(raw model.RawReceived, minConfirmations int) (*model.Donation, error) {
	if raw.TxID == "" {
		return nil, errors.Wrap(ErrMalformedAmount, "entry has no txid")
	}

	amount, err := parseAmount(raw)
	if err != nil {
		return nil, err
	}

	var timestamp *time.Time
	if raw.BlockTime > 0 {
		at := time.Unix(raw.BlockTime, 0).UTC()
		timestamp = &at
	}

	return &model.Donation{
		TxID:          raw.TxID,
		Amount:        amount,
		Confirmations: raw.Confirmations,
		Timestamp:     timestamp,
		Memo:          decodeMemo(raw.Memo),
		Pending:       raw.Confirmations < minConfirmations,
	}, nil
}

func parseAmount(raw model.RawReceived) (decimal.Decimal, error) {
	if raw.AmountZat != 0 {
		if raw.AmountZat < 0 {
			return decimal.Zero, errors.Wrapf(ErrMalformedAmount, "tx %s: negative amount %d zat", raw.TxID, raw.AmountZat)
		}
		return decimal.New(raw.AmountZat, model.ZatoshiExponent), nil
	}

	if raw.Amount == "" {
		return decimal.Zero, errors.Wrapf(ErrMalformedAmount, "tx %s: no amount reported", raw.TxID)
	}
	amount, err := decimal.NewFromString(raw.Amount.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrMalformedAmount, "tx %s: unparsable amount `%s`", raw.TxID, raw.Amount)
	}
	if amount.IsNegative() {
		return decimal.Zero, errors.Wrapf(ErrMalformedAmount, "tx %s: negative amount %s", raw.TxID, amount)
	}
	return amount, nil
}

// decodeMemo turns the hex memo field into display text. All-zero padding
// means no memo; undecodable or non-utf8 bytes degrade to nil rather than
// surfacing an error.
func decodeMemo(memoHex string) *string {
	if memoHex == "" {
		return nil
	}
	raw, err := hex.DecodeString(memoHex)
	if err != nil {
		return nil
	}
	trimmed := strings.TrimRight(string(raw), "\x00")
	if trimmed == "" {
		return nil
	}
	if !utf8.ValidString(trimmed) {
		return nil
	}
	return &trimmed
}
