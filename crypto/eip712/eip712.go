// Package eip712 wraps go-ethereum's typed-data encoder behind the small
// surface the settlement engine needs: building a domain, hashing a typed
// message, and recovering the signer of a 65-byte secp256k1 signature.
//
// Every marketplace keeps its own authoritative EIP-712 schema; this package
// is parameterized by {domain, types, primary type, message} so none of those
// schemas has to be re-derived here.
package eip712

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignatureLength is the canonical [R || S || V] encoding length.
const SignatureLength = 65

var (
	// ErrSignatureLength indicates a signature that is not 65 bytes.
	ErrSignatureLength = errors.New("eip712: signature must be 65 bytes")
	// ErrSignatureRecovery indicates an unrecoverable signature.
	ErrSignatureRecovery = errors.New("eip712: signature recovery failed")
)

// Domain assembles a typed-data domain for the given verifying contract.
func Domain(name, version string, chainID uint64, verifying common.Address) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              name,
		Version:           version,
		ChainId:           math.NewHexOrDecimal256(int64(chainID)),
		VerifyingContract: verifying.Hex(),
	}
}

// Types builds the full type dictionary for a message: the standard
// EIP712Domain entry plus the caller's primary type and any dependencies.
func Types(extra map[string][]apitypes.Type) apitypes.Types {
	types := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
	}
	for name, fields := range extra {
		types[name] = fields
	}
	return types
}

// Digest computes keccak256(0x1901 || domainSeparator || hashStruct(message)).
func Digest(domain apitypes.TypedDataDomain, types apitypes.Types, primary string, message apitypes.TypedDataMessage) (common.Hash, error) {
	td := apitypes.TypedData{
		Types:       types,
		PrimaryType: primary,
		Domain:      domain,
		Message:     message,
	}
	raw, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Hash{}, fmt.Errorf("eip712: hash %s: %w", primary, err)
	}
	return common.BytesToHash(raw), nil
}

// Sign produces a 65-byte signature over the digest with the Ethereum
// convention of V in {27, 28}.
func Sign(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// RecoverSigner returns the address that produced the signature over digest.
// V is accepted either raw (0/1) or in the Ethereum convention (27/28).
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrSignatureLength
	}
	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, ErrSignatureRecovery
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
