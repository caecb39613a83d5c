package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/liyecom/govkernel/core/fsx"
	"github.com/liyecom/govkernel/core/sign"
)

type keysGenerateOutput struct {
	OK             bool   `json:"ok"`
	KeyID          string `json:"key_id,omitempty"`
	PublicKeyPath  string `json:"public_key_path,omitempty"`
	PrivateKeyPath string `json:"private_key_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

func (o keysGenerateOutput) Text() string {
	if o.Error != "" {
		return "keys generate failed: " + o.Error
	}
	return fmt.Sprintf("key_id=%s private=%s public=%s", o.KeyID, o.PrivateKeyPath, o.PublicKeyPath)
}

func runKeys(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Manage local ed25519 keys for detached evidence package signatures.")
	}
	if len(arguments) == 0 {
		printKeysUsage()
		return exitInvalidInput
	}

	switch arguments[0] {
	case "generate":
		return runKeysGenerate(arguments[1:])
	default:
		printKeysUsage()
		return exitInvalidInput
	}
}

func runKeysGenerate(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Generate a new ed25519 keypair and write base64-encoded key files to disk.")
	}
	arguments = reorderInterspersedFlags(arguments, map[string]bool{"out-dir": true, "prefix": true})
	flagSet := flag.NewFlagSet("keys-generate", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var outDir string
	var prefix string
	var force bool
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&outDir, "out-dir", filepath.Join(defaultOutDir, "keys"), "directory for generated key files")
	flagSet.StringVar(&prefix, "prefix", "govkernel", "key file prefix")
	flagSet.BoolVar(&force, "force", false, "overwrite existing key files")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(arguments); err != nil {
		return writeJSONOutput(jsonOutput, keysGenerateOutput{Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printKeysUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeJSONOutput(jsonOutput, keysGenerateOutput{Error: "unexpected positional arguments"}, exitInvalidInput)
	}

	output, err := createSigningKeypair(outDir, prefix, force)
	if err != nil {
		return writeJSONOutput(jsonOutput, keysGenerateOutput{Error: err.Error()}, exitCodeForError(err, exitInternalFailure))
	}
	return writeJSONOutput(jsonOutput, output, exitOK)
}

func createSigningKeypair(outDir, prefix string, force bool) (keysGenerateOutput, error) {
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return keysGenerateOutput{}, fmt.Errorf("create key directory: %w", err)
	}
	privatePath := filepath.Join(outDir, prefix+"_private.key")
	publicPath := filepath.Join(outDir, prefix+"_public.key")
	if !force {
		for _, path := range []string{privatePath, publicPath} {
			if _, err := os.Stat(path); err == nil {
				return keysGenerateOutput{}, fmt.Errorf("key file already exists: %s (use --force to overwrite)", path)
			}
		}
	}

	keyPair, err := sign.GenerateKeyPair()
	if err != nil {
		return keysGenerateOutput{}, err
	}
	privateEncoded, publicEncoded := sign.EncodeKeyPairBase64(keyPair)
	if err := fsx.WriteFileAtomic(privatePath, []byte(privateEncoded+"\n"), 0o600); err != nil {
		return keysGenerateOutput{}, fmt.Errorf("write private key: %w", err)
	}
	if err := fsx.WriteFileAtomic(publicPath, []byte(publicEncoded+"\n"), 0o644); err != nil {
		return keysGenerateOutput{}, fmt.Errorf("write public key: %w", err)
	}
	return keysGenerateOutput{
		OK:             true,
		KeyID:          sign.KeyID(keyPair.Public),
		PublicKeyPath:  publicPath,
		PrivateKeyPath: privatePath,
	}, nil
}

func printKeysUsage() {
	fmt.Println("usage: govkernel keys generate [--out-dir <dir>] [--prefix <name>] [--force] [--json]")
}
