// Command metallibc transcodes a compiled Apple .metallib container (or
// a bare AIR bitcode file) into a SPIR-V binary module.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	airlines "github.com/gogpu/airlines"
	"github.com/gogpu/airlines/internal/diag"
	"github.com/gogpu/airlines/spirv"
)

var (
	verbose  bool
	tolerant bool
	debug    bool
	rawAIR   bool
	outPath  string
	spvMajor int
	spvMinor int
)

func transcodeOne(filename string) error {
	logger := diag.NewLogger()
	logger.SetVerbose(verbose)

	opts := airlines.Options{
		SPIRVVersion: spirv.Version{Major: uint8(spvMajor), Minor: uint8(spvMinor)},
		Debug:        debug,
		Tolerant:     tolerant,
		Logger:       logger,
	}

	var spv []byte
	var err error
	if rawAIR {
		data, readErr := os.ReadFile(filename)
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", filename, readErr)
		}
		spv, err = airlines.Transcode(data, opts)
	} else {
		spv, err = airlines.TranscodeFile(filename, opts)
	}
	if err != nil {
		return fmt.Errorf("transcoding %s: %w", filename, err)
	}

	dest := outPath
	if dest == "" {
		dest = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".spv"
	}
	if err := os.WriteFile(dest, spv, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}

	fmt.Printf("%s -> %s (%d bytes)\n", filename, dest, len(spv))
	return nil
}

func runTranscode(cmd *cobra.Command, args []string) error {
	if outPath != "" && len(args) > 1 {
		return fmt.Errorf("--out can only be used with a single input file")
	}
	for _, filename := range args {
		if err := transcodeOne(filename); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "metallibc [file...]",
		Short: "Transcode Apple .metallib shaders to SPIR-V",
		Long:  "metallibc unwraps a .metallib container, decodes its embedded AIR bitcode, and lowers it to a SPIR-V binary module.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runTranscode,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("metallibc 0.1.0")
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose diagnostic logging")
	rootCmd.Flags().BoolVar(&tolerant, "tolerant", false, "degrade unresolvable AIR constructs to warnings instead of failing")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "keep debug names in the emitted SPIR-V")
	rootCmd.Flags().BoolVar(&rawAIR, "raw", false, "treat the input as a bare AIR bitcode stream instead of a .metallib container")
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (only valid for a single input file; defaults to replacing the input extension with .spv)")
	rootCmd.Flags().IntVar(&spvMajor, "spv-major", 1, "target SPIR-V major version")
	rootCmd.Flags().IntVar(&spvMinor, "spv-minor", 0, "target SPIR-V minor version")

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
