package siwe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verification errors. Callers treat these as "not verified", not as
// fatal conditions.
var (
	ErrUnknownNonce        = errors.New("unknown or expired nonce")
	ErrNonceWalletMismatch = errors.New("nonce was issued to a different wallet")
	ErrMalformedSignature  = errors.New("malformed signature")
)

// ChallengeMessage builds the text a wallet signs to prove control of an
// address. The nonce binds the signature to one issued challenge.
func ChallengeMessage(wallet, nonce string) string {
	return fmt.Sprintf("chaingate wants you to sign in with your Ethereum account:\n%s\n\nNonce: %s", wallet, nonce)
}

// Verifier checks EIP-191 personal signatures against previously issued
// nonces.
type Verifier struct {
	nonces *NonceStore
}

// NewVerifier creates a verifier backed by the given nonce store.
func NewVerifier(nonces *NonceStore) *Verifier {
	return &Verifier{nonces: nonces}
}

// Verify recovers the signer of the challenge message for (wallet, nonce)
// and reports whether it matches the claimed wallet. The nonce is consumed
// whether or not the signature checks out.
func (v *Verifier) Verify(wallet, nonce, signature string) (bool, error) {
	issuedTo, ok := v.nonces.Consume(nonce)
	if !ok {
		return false, ErrUnknownNonce
	}
	if !strings.EqualFold(issuedTo, wallet) {
		return false, ErrNonceWalletMismatch
	}

	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false, ErrMalformedSignature
	}

	// Wallets produce the legacy 27/28 recovery id; normalize to 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(ChallengeMessage(wallet, nonce)))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), wallet), nil
}
