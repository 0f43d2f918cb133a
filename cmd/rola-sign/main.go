package main

import (
	"fmt"
	"os"

	"github.com/layer-3/rola"
	"github.com/urfave/cli/v2"
)

var (
	keyFlag = &cli.StringFlag{
		Name:     "key",
		Usage:    "hex encoded secp256k1 private key",
		EnvVars:  []string{"ROLA_PRIVATE_KEY"},
		Required: true,
	}
	hrpFlag = &cli.StringFlag{
		Name:  "hrp",
		Usage: "address prefix",
		Value: "account_tdx_2_",
	}
)

func main() {
	app := &cli.App{
		Name:  "rola-sign",
		Usage: "developer wallet for the ROLA authentication service",
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "generate a key and print its address",
				Flags:  []cli.Flag{hrpFlag},
				Action: keygen,
			},
			{
				Name:   "address",
				Usage:  "print the address of a key",
				Flags:  []cli.Flag{keyFlag, hrpFlag},
				Action: address,
			},
			{
				Name:  "sign",
				Usage: "sign a challenge",
				Flags: []cli.Flag{
					keyFlag,
					&cli.StringFlag{Name: "challenge", Usage: "challenge to sign", Required: true},
				},
				Action: sign,
			},
			{
				Name:  "login",
				Usage: "request, sign and submit a challenge against a running service",
				Flags: []cli.Flag{
					keyFlag,
					hrpFlag,
					&cli.StringFlag{Name: "url", Usage: "service base URL", Value: "http://localhost:8000"},
				},
				Action: login,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rola-sign: %v\n", err)
		os.Exit(1)
	}
}

func keygen(c *cli.Context) error {
	signer, err := rola.GenerateSigner()
	if err != nil {
		return err
	}
	addr, err := signer.Address(c.String("hrp"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "private_key: %s\npublic_key:  %s\naddress:     %s\n",
		signer.PrivateKeyHex(), signer.PublicKeyHex(), addr)
	return nil
}

func address(c *cli.Context) error {
	signer, err := rola.NewSigner(c.String("key"))
	if err != nil {
		return err
	}
	addr, err := signer.Address(c.String("hrp"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, addr)
	return nil
}

func sign(c *cli.Context) error {
	signer, err := rola.NewSigner(c.String("key"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "signature:  %s\npublic_key: %s\n", signer.Sign(c.String("challenge")), signer.PublicKeyHex())
	return nil
}

func login(c *cli.Context) error {
	signer, err := rola.NewSigner(c.String("key"))
	if err != nil {
		return err
	}
	confirmation, err := rola.Login(c.Context, rola.NewHTTPClient(c.String("url"), nil), signer, c.String("hrp"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %s\n", confirmation.Message, confirmation.WalletAddress)
	return nil
}
