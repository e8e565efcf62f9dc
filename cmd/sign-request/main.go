// Command sign-request produces an oracle signature for a bridge request and
// prints it as a JSON body accepted by the bridge HTTP API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainsafe/gogo-bridge/pkg/auth"
	"github.com/chainsafe/gogo-bridge/pkg/bridge"
	bridgeservice "github.com/chainsafe/gogo-bridge/pkg/bridge/service"
	"github.com/chainsafe/gogo-bridge/pkg/signature"
	"github.com/chainsafe/gogo-bridge/pkg/token"
)

// envOracleKey is read when -key is not given.
const envOracleKey = "ORACLE_PRIVATE_KEY"

type output struct {
	Signer      string                    `json:"signer"`
	SigningData string                    `json:"signing_data"`
	Digest      string                    `json:"digest"`
	Request     bridgeservice.RequestBody `json:"request"`
}

func main() {
	keyHex := flag.String("key", "", "Oracle private key (hex); defaults to $"+envOracleKey)
	user := flag.String("user", "", "User address")
	amount := flag.String("amount", "", "Amount in base units (decimal or 0x-hex)")
	nonce := flag.String("nonce", "", "Request nonce (decimal or 0x-hex)")
	direction := flag.String("direction", "to_public", "to_public or to_private")
	flag.Parse()

	if *keyHex == "" {
		*keyHex = os.Getenv(envOracleKey)
	}
	if err := run(*keyHex, *user, *amount, *nonce, *direction); err != nil {
		fmt.Fprintf(os.Stderr, "sign-request: %v\n", err)
		os.Exit(1)
	}
}

func run(keyHex, user, amount, nonce, direction string) error {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	userAddr, err := auth.ParseAddress(user)
	if err != nil {
		return fmt.Errorf("invalid user address: %w", err)
	}
	amt, err := token.ParseAmount(amount)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	n, err := token.ParseAmount(nonce)
	if err != nil {
		return fmt.Errorf("invalid nonce: %w", err)
	}
	dir, ok := bridge.ParseDirection(direction)
	if !ok {
		return fmt.Errorf("invalid direction %q", direction)
	}

	sig, err := signature.Sign(key, userAddr, amt, n, dir)
	if err != nil {
		return err
	}
	data := signature.SigningData(userAddr, amt, n, dir)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(&output{
		Signer:      crypto.PubkeyToAddress(key.PublicKey).Hex(),
		SigningData: data.Hex(),
		Digest:      signature.Digest(data).Hex(),
		Request: bridgeservice.RequestBody{
			UserAddress: userAddr.Hex(),
			Amount:      amt.Dec(),
			Nonce:       n.Dec(),
			Direction:   bool(dir),
			Signature:   hexutil.Encode(sig),
		},
	})
}
