// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"

	"github.com/luxfi/tally"
	"github.com/luxfi/tally/crypto/fhe"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tallycli",
	Short: "Tally - confidential aggregation protocol CLI",
	Long: `Tally accumulates encrypted submissions into per-batch totals and reveals
them through a decryption oracle.

This CLI provides tools for producing handles with the development scheme and
for computing the binding digest an oracle callback is checked against.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
}

func init() {
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(combineCmd)
	rootCmd.AddCommand(digestCmd)

	encryptCmd.Flags().String("value", "", "Decimal value to encrypt")

	decodeCmd.Flags().String("handle", "", "Hex-encoded handle to decode")

	combineCmd.Flags().StringSlice("handle", nil, "Hex-encoded handles to combine")

	digestCmd.Flags().String("instance", "", "Hex address of the protocol instance")
	digestCmd.Flags().StringSlice("handle", nil, "Hex-encoded handles, in submission order")
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a value with the development scheme",
	Long:  `Encrypt a decimal value into a handle using the insecure mock scheme.`,
	Run: func(cmd *cobra.Command, args []string) {
		raw, _ := cmd.Flags().GetString("value")
		value, err := uint256.FromDecimal(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid value: %v\n", err)
			os.Exit(1)
		}

		scheme := fhe.NewMockScheme()
		pk, _, err := scheme.GenerateKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Key generation failed: %v\n", err)
			os.Exit(1)
		}
		ct, err := scheme.Encrypt(value, pk)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Encryption failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Handle: %x\n", ct.Bytes())
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a development-scheme handle",
	Long:  `Decode a mock scheme handle back to its decimal value.`,
	Run: func(cmd *cobra.Command, args []string) {
		raw, _ := cmd.Flags().GetString("handle")

		scheme := fhe.NewMockScheme()
		ct, err := parseHandle(scheme, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid handle: %v\n", err)
			os.Exit(1)
		}
		value, err := scheme.Decrypt(ct, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Decryption failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Value: %s\n", value.Dec())
	},
}

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Homomorphically combine handles",
	Long:  `Combine two or more mock scheme handles into a single accumulator handle.`,
	Run: func(cmd *cobra.Command, args []string) {
		raws, _ := cmd.Flags().GetStringSlice("handle")
		if len(raws) < 2 {
			fmt.Fprintln(os.Stderr, "Need at least two handles")
			os.Exit(1)
		}

		scheme := fhe.NewMockScheme()
		combined, err := parseHandle(scheme, raws[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid handle: %v\n", err)
			os.Exit(1)
		}
		for _, raw := range raws[1:] {
			next, err := parseHandle(scheme, raw)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid handle: %v\n", err)
				os.Exit(1)
			}
			combined, err = combined.Add(next)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Combine failed: %v\n", err)
				os.Exit(1)
			}
		}

		fmt.Printf("Handle: %x\n", combined.Bytes())
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Compute a binding digest",
	Long: `Compute the binding digest over an ordered list of handles for a protocol
instance. An oracle callback is only accepted while the target batch still
hashes to this digest.`,
	Run: func(cmd *cobra.Command, args []string) {
		instanceHex, _ := cmd.Flags().GetString("instance")
		raws, _ := cmd.Flags().GetStringSlice("handle")

		if !common.IsHexAddress(instanceHex) {
			fmt.Fprintf(os.Stderr, "Invalid instance address: %s\n", instanceHex)
			os.Exit(1)
		}
		handles := make([][]byte, len(raws))
		for i, raw := range raws {
			decoded, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid handle hex: %v\n", err)
				os.Exit(1)
			}
			handles[i] = decoded
		}

		digest := tally.BindingDigest(common.HexToAddress(instanceHex), handles)
		fmt.Printf("Digest: %x\n", digest[:])
	},
}

func parseHandle(scheme fhe.Scheme, raw string) (fhe.Ciphertext, error) {
	decoded, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, err
	}
	return scheme.ParseCiphertext(decoded)
}
