package kyber

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs transactions on behalf of one account
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner signs with an in-memory ECDSA key
type KeySigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewKeySigner parses a hex private key, with or without the 0x prefix
func NewKeySigner(hexKey string) (*KeySigner, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}

	return &KeySigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
	}, nil
}

// Address returns the account address derived from the key
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignTx signs tx with EIP-155 replay protection
func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}
