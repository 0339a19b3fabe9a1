// Command jxldec decodes a JPEG XL still image to PNG from the command
// line.
//
// Usage:
//
//	jxldec <input.jxl> [output.png]
//
// Exit codes (spec §6): 0 on success, 1 on decode error (a four-character
// sticky code is printed to stderr), 2 on I/O error, 3 on out-of-memory.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/deepteams/jxl"
	"github.com/deepteams/jxl/internal/jerr"
)

// noMemCode is the sticky code that maps to exit status 3 (spec §6).
var noMemCode = jerr.NoMem

func main() {
	logFile := flag.String("log-file", "", "rotate decoder trace logs to this file instead of stderr")
	verbose := flag.Bool("v", false, "enable debug-level trace logging")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: jxldec <input.jxl> [output.png]")
		os.Exit(1)
	}
	inputPath := args[0]
	outputPath := ""
	if len(args) >= 2 {
		outputPath = args[1]
	}

	logger := buildLogger(*logFile, *verbose)
	defer logger.Sync()
	jxl.SetLogger(logger.Sugar())

	os.Exit(run(inputPath, outputPath))
}

// buildLogger builds the CLI's zap logger: a development config by
// default, rotated via lumberjack when -log-file is given (spec
// SPEC_FULL.md AMBIENT STACK).
func buildLogger(logFile string, verbose bool) *zap.Logger {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	if logFile == "" {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		l, err := cfg.Build()
		if err != nil {
			return zap.NewNop()
		}
		return l
	}

	ljLogger := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(ljLogger), level)
	return zap.New(core)
}

func run(inputPath, outputPath string) int {
	in, err := os.Open(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jxldec: %v\n", err)
		return 2
	}
	defer in.Close()

	img, err := jxl.Decode(in)
	if err != nil {
		code, ok := jxl.CodeOf(err)
		if ok {
			fmt.Fprintf(os.Stderr, "jxldec: decode error %s: %v\n", code, err)
		} else {
			fmt.Fprintf(os.Stderr, "jxldec: %v\n", err)
		}
		if ok && code == noMemCode {
			return 3
		}
		return 1
	}

	if outputPath == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		outputPath = base + ".png"
	}

	out, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jxldec: %v\n", err)
		return 2
	}

	if err := png.Encode(out, toGoImage(img)); err != nil {
		out.Close()
		os.Remove(outputPath)
		fmt.Fprintf(os.Stderr, "jxldec: encoding PNG: %v\n", err)
		return 2
	}
	if err := out.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "jxldec: %v\n", err)
		return 2
	}

	fmt.Fprintf(os.Stderr, "Decoded %s -> %s (%dx%d)\n", inputPath, outputPath, img.Width, img.Height)
	return 0
}

// toGoImage converts the core's plain plane-slice Image into a standard
// library image.Image for png.Encode, the same role deepteams-webp's CLI
// plays as "a thin consumer of the core codec package" (SPEC_FULL.md §6).
func toGoImage(img *jxl.Image) image.Image {
	bounds := image.Rect(0, 0, img.Width, img.Height)
	if img.Grayscale && img.Alpha == nil {
		out := image.NewGray16(bounds)
		plane := img.Planes[0]
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				v := plane[y*img.Width+x]
				out.SetGray16(x, y, color.Gray16{Y: v})
			}
		}
		return out
	}

	out := image.NewRGBA64(bounds)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := y*img.Width + x
			var r, g, b, a uint16 = 0, 0, 0, 0xFFFF
			if img.Grayscale {
				r, g, b = img.Planes[0][i], img.Planes[0][i], img.Planes[0][i]
			} else {
				r, g, b = img.Planes[0][i], img.Planes[1][i], img.Planes[2][i]
			}
			if img.Alpha != nil {
				a = img.Alpha[i]
			}
			out.SetRGBA64(x, y, color.RGBA64{R: r, G: g, B: b, A: a})
		}
	}
	return out
}
