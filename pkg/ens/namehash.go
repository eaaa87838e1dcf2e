package ens

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const reverseSuffix = "addr.reverse"

// NameHash computes the EIP-137 namehash of name. The empty name hashes to zero.
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		node = crypto.Keccak256Hash(node.Bytes(), LabelHash(labels[i]).Bytes())
	}
	return node
}

// LabelHash is the keccak256 of a single label.
func LabelHash(label string) common.Hash {
	return crypto.Keccak256Hash([]byte(label))
}

// Subnode derives the node of label under parent.
func Subnode(parent common.Hash, label string) common.Hash {
	return crypto.Keccak256Hash(parent.Bytes(), LabelHash(label).Bytes())
}

// ReverseName returns "<hex address without 0x>.addr.reverse" in lower case.
func ReverseName(addr common.Address) string {
	return strings.ToLower(addr.Hex()[2:]) + "." + reverseSuffix
}

// ReverseNode is the namehash of the reverse record for addr.
func ReverseNode(addr common.Address) common.Hash {
	return NameHash(ReverseName(addr))
}
