package ethunits

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/holiman/uint256"
)

// Decimals is the number of fractional digits of one ether.
const Decimals = 18

var (
	weiPerEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)
	reAmount  = regexp.MustCompile(`^([0-9]+\.?[0-9]*|\.[0-9]+)$`)

	ErrInvalidAmount = errors.New("invalid eth amount")
)

// ParseEther converts a decimal ETH string ("1.5", "0,5") to wei.
// Zero is accepted; negative numbers, exponents, fractions and more than 18
// fractional digits are not. The result always fits in 256 bits.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, ",", ".")

	if !reAmount.MatchString(amount) {
		return nil, ErrInvalidAmount
	}
	if i := strings.IndexByte(amount, '.'); i >= 0 && len(amount)-i-1 > Decimals {
		return nil, fmt.Errorf("%w: more than %d fractional digits", ErrInvalidAmount, Decimals)
	}

	r, ok := new(big.Rat).SetString(amount)
	if !ok || r.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEth))
	if !r.IsInt() {
		return nil, ErrInvalidAmount
	}

	out := new(big.Int).Set(r.Num())
	if _, overflow := uint256.FromBig(out); overflow {
		return nil, fmt.Errorf("%w: overflows uint256", ErrInvalidAmount)
	}
	return out, nil
}

// FormatEther renders wei as an exact decimal ETH string without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Set(wei)
	if abs.Sign() < 0 {
		sign = "-"
		abs.Neg(abs)
	}

	whole, frac := new(big.Int).QuoRem(abs, weiPerEth, new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	fs := frac.String()
	fs = strings.Repeat("0", Decimals-len(fs)) + fs
	fs = strings.TrimRight(fs, "0")
	return sign + whole.String() + "." + fs
}

func WeiToEthString(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	r := new(big.Rat).SetInt(wei)
	r.Quo(r, new(big.Rat).SetInt(weiPerEth))
	// 18 digits is too much for chat text, keep 6
	f, _ := r.Float64()
	return fmt.Sprintf("%.6f", f)
}

// EpochTime converts an on-chain epoch-seconds value to a UTC time.
func EpochTime(sec *big.Int) time.Time {
	if sec == nil || !sec.IsInt64() {
		return time.Time{}
	}
	return time.UnixMilli(sec.Int64() * 1000).UTC()
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
