// Command airdump decodes a .metallib container (or bare AIR bitcode
// file) and prints the resulting AIR module structure as JSON, for
// inspecting what a transcode run actually saw without lowering it.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	airlines "github.com/gogpu/airlines"
	"github.com/gogpu/airlines/internal/diag"
	"github.com/gogpu/airlines/metallib"
)

var (
	verbose  bool
	tolerant bool
	rawAIR   bool
	sigOnly  bool
)

func prettyPrint(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "\t"); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func dumpSignature(filename string) error {
	file, err := metallib.Open(filename)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filename, err)
	}
	defer file.Close()

	out, err := prettyPrint(file.Signature)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func dumpModule(filename string) error {
	logger := diag.NewLogger()
	logger.SetVerbose(verbose)
	opts := airlines.Options{Tolerant: tolerant, Logger: logger}

	var data []byte
	var err error
	if rawAIR {
		data, err = os.ReadFile(filename)
	} else {
		var file *metallib.File
		file, err = metallib.Open(filename)
		if err == nil {
			defer file.Close()
			data = file.Bitcode()
		}
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}

	module, err := airlines.DecodeModule(data, opts)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", filename, err)
	}

	out, err := prettyPrint(module)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	for _, filename := range args {
		var err error
		if sigOnly {
			err = dumpSignature(filename)
		} else {
			err = dumpModule(filename)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "airdump [file...]",
		Short: "Dump a decoded AIR module as JSON",
		Long:  "airdump decodes a .metallib container's embedded AIR bitcode (or a bare bitcode file with --raw) and prints the decoded module structure as JSON.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDump,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose diagnostic logging")
	rootCmd.Flags().BoolVar(&tolerant, "tolerant", false, "degrade unresolvable AIR constructs to warnings instead of failing")
	rootCmd.Flags().BoolVar(&rawAIR, "raw", false, "treat the input as a bare AIR bitcode stream instead of a .metallib container")
	rootCmd.Flags().BoolVar(&sigOnly, "signature", false, "dump only the metallib container signature, not the decoded AIR module")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
