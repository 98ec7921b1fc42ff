package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidAddress is returned for strings that are not 20-byte hex addresses.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrInvalidChallenge is returned when a signed message is not a fresh
	// challenge issued for the claimed address.
	ErrInvalidChallenge = errors.New("invalid wallet challenge")
)

// NormalizeAddress validates address and returns its EIP-55 checksum form.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(address).Hex(), nil
}

// VerifySignature reports whether signature is a personal_sign (EIP-191)
// signature of message by address. Malformed input is simply false.
func VerifySignature(address, message, signature string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	// wallets produce v in {27, 28}; go-ethereum expects {0, 1}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), common.HexToAddress(address).Hex())
}

// Challenges builds and checks the messages a wallet is asked to sign.
type Challenges struct {
	AppName string
	TTL     time.Duration
	// Skew tolerated for timestamps slightly in the future.
	Skew time.Duration
	Now  func() time.Time
}

// Challenge is a server-generated message bound to an address and a moment.
type Challenge struct {
	Message   string
	Address   string
	Timestamp int64
}

func (c Challenges) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Connect builds the challenge used to link a wallet to a signed-in account.
func (c Challenges) Connect(address string) Challenge {
	ts := c.now().UnixMilli()
	return Challenge{Message: c.connectMessage(address, ts), Address: address, Timestamp: ts}
}

// Login builds the challenge used to sign in with a wallet alone.
func (c Challenges) Login(address string) Challenge {
	ts := c.now().UnixMilli()
	return Challenge{Message: c.loginMessage(address, ts), Address: address, Timestamp: ts}
}

// CheckConnect verifies message is a fresh connect challenge for address.
func (c Challenges) CheckConnect(address, message string) error {
	return c.check(message, func(ts int64) string { return c.connectMessage(address, ts) })
}

// CheckLogin verifies message is a fresh login challenge for address.
func (c Challenges) CheckLogin(address, message string) error {
	return c.check(message, func(ts int64) string { return c.loginMessage(address, ts) })
}

func (c Challenges) check(message string, build func(int64) string) error {
	idx := strings.LastIndex(message, " at ")
	if idx < 0 {
		return ErrInvalidChallenge
	}
	ts, err := strconv.ParseInt(message[idx+len(" at "):], 10, 64)
	if err != nil {
		return ErrInvalidChallenge
	}
	if build(ts) != message {
		return ErrInvalidChallenge
	}

	issued := time.UnixMilli(ts)
	now := c.now()
	if c.TTL > 0 && now.Sub(issued) > c.TTL {
		return fmt.Errorf("%w: issued %s ago", ErrInvalidChallenge, now.Sub(issued).Round(time.Second))
	}
	if issued.Sub(now) > c.Skew {
		return fmt.Errorf("%w: issued in the future", ErrInvalidChallenge)
	}
	return nil
}

func (c Challenges) connectMessage(address string, ts int64) string {
	return fmt.Sprintf("Connect wallet %s to %s account at %d", AbbreviateAddress(address), c.AppName, ts)
}

func (c Challenges) loginMessage(address string, ts int64) string {
	return fmt.Sprintf("Sign in with wallet %s to %s at %d", AbbreviateAddress(address), c.AppName, ts)
}

// AbbreviateAddress keeps the first 10 and last 8 characters.
func AbbreviateAddress(address string) string {
	if len(address) <= 18 {
		return address
	}
	return address[:10] + "..." + address[len(address)-8:]
}
