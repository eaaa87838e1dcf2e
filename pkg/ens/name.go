package ens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidNameFormat = errors.New("invalid normalized name: must have at least one dot")
	ErrInvalidAddress    = errors.New("invalid address")
)

// Name is a normalized name split at its first dot.
type Name struct {
	Label  string
	Parent string
}

// String joins the label back onto its parent.
func (n Name) String() string {
	return n.Label + "." + n.Parent
}

// IsAddressEmpty reports whether addr is empty or whitespace only.
func IsAddressEmpty(addr string) bool {
	return strings.TrimSpace(addr) == ""
}

// IsAddressValid reports whether addr is a 0x-prefixed 40 hex digit address.
// Mixed-case input must carry a valid EIP-55 checksum.
func IsAddressValid(addr string) bool {
	if IsAddressEmpty(addr) {
		return false
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return false
	}
	if !common.IsHexAddress(addr) {
		return false
	}
	body := addr[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return common.HexToAddress(addr).Hex() == addr
}

// ParseAddress validates addr and converts it.
func ParseAddress(addr string) (common.Address, error) {
	if !IsAddressValid(addr) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return common.HexToAddress(addr), nil
}

// ParseNormalizedName splits name into its first label and the remaining parent.
// It is the only place a name gets decomposed.
func ParseNormalizedName(name string) (Name, error) {
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return Name{}, ErrInvalidNameFormat
	}
	return Name{
		Label:  parts[0],
		Parent: strings.Join(parts[1:], "."),
	}, nil
}

// Normalize trims and lower-cases a user supplied name and rejects empty labels.
func Normalize(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if !strings.Contains(n, ".") {
		return "", ErrInvalidNameFormat
	}
	for _, label := range strings.Split(n, ".") {
		if label == "" {
			return "", fmt.Errorf("%w: empty label in %q", ErrInvalidNameFormat, name)
		}
		if strings.ContainsAny(label, " \t\r\n") {
			return "", fmt.Errorf("%w: whitespace in label %q", ErrInvalidNameFormat, label)
		}
	}
	return n, nil
}
