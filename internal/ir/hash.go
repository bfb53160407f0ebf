package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainExpression = "rapi/expression/v1"
	DomainFragment   = "rapi/fragment/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ExpressionKey computes the structural key of an expression node from its
// operator kind, its identity-bearing attributes and the keys of its
// operands, in operand order.
//
// Two nodes built with the same operator, equal attributes and pairwise
// equal operands always get the same key.
func ExpressionKey(kind string, attrs IRObject, operandKeys []string) (string, error) {
	if attrs == nil {
		attrs = IRObject{}
	}
	obj := IRObject{
		"kind":     IRString(kind),
		"attrs":    attrs,
		"operands": StringArray(operandKeys),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ExpressionKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainExpression, canonical), nil
}

// FragmentHash identifies a canonical fragment document.
func FragmentHash(doc IRObject) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("FragmentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFragment, canonical), nil
}

// MustExpressionKey is like ExpressionKey but panics on error.
// Use only when attrs are known to be canonical.
func MustExpressionKey(kind string, attrs IRObject, operandKeys []string) string {
	key, err := ExpressionKey(kind, attrs, operandKeys)
	if err != nil {
		panic(err)
	}
	return key
}
