package protocol

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

func ethKeccak(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}
