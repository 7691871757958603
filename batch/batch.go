// Package batch transcribes whole audio files through the same shared
// recognition engine the streaming server uses, writing one JSON result
// per input. It can also watch a directory and process WAV files as
// they appear.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kmattern/hearsay/asr"
	"github.com/kmattern/hearsay/audio"
	"github.com/kmattern/hearsay/protocol"
)

// FileResult is the JSON document written for one processed file.
type FileResult struct {
	Filename   string             `json:"filename"`
	Text       string             `json:"text"`
	Timestamps []protocol.Segment `json:"timestamps"`
}

// Processor transcribes audio files and writes their results.
type Processor struct {
	engine    *asr.Engine
	outputDir string
}

// NewProcessor creates a processor writing results into outputDir,
// which is created if missing.
func NewProcessor(engine *asr.Engine, outputDir string) (*Processor, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Processor{engine: engine, outputDir: outputDir}, nil
}

// ProcessPath transcribes a single file, or every WAV file under a
// directory tree. It returns how many files were processed successfully
// and an error only when the input path itself is unusable.
func (p *Processor) ProcessPath(ctx context.Context, input string) (int, error) {
	info, err := os.Stat(input)
	if err != nil {
		return 0, fmt.Errorf("invalid input path: %w", err)
	}

	if !info.IsDir() {
		if _, err := p.ProcessFile(ctx, input); err != nil {
			return 0, err
		}
		return 1, nil
	}

	processed := 0
	found := 0
	err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isAudioFile(path) {
			return nil
		}
		found++

		if !strings.EqualFold(filepath.Ext(path), ".wav") {
			slog.Warn("Skipping unsupported audio format", "file", path)
			return nil
		}

		if _, err := p.ProcessFile(ctx, path); err != nil {
			slog.Error("Failed to process audio file", "error", err, "file", path)
			return nil
		}
		processed++
		return nil
	})
	if err != nil {
		return processed, fmt.Errorf("failed to walk input directory: %w", err)
	}

	slog.Info("Batch processing complete",
		"found", found,
		"processed", processed,
		"outputDir", p.outputDir)
	return processed, nil
}

// ProcessFile transcribes one WAV file and writes its result document.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*FileResult, error) {
	slog.Info("Processing audio file", "file", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	samples, sampleRate, err := audio.ReadWAV(file)
	file.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	slog.Debug("Audio file loaded",
		"file", path,
		"sampleRate", sampleRate,
		"durationSeconds", float64(len(samples))/float64(sampleRate))

	res := p.engine.Transcribe(ctx, samples, sampleRate)
	if res.Error != "" {
		return nil, fmt.Errorf("recognition failed for %s: %s", path, res.Error)
	}

	result := &FileResult{
		Filename:   filepath.Base(path),
		Text:       res.Text,
		Timestamps: res.Timestamps,
	}

	outPath := p.resultPath(path)
	if err := writeResult(outPath, result); err != nil {
		return nil, err
	}

	slog.Info("Result written",
		"file", filepath.Base(path),
		"output", outPath,
		"textLength", len(result.Text))
	return result, nil
}

func (p *Processor) resultPath(inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(p.outputDir, base+"_result.json")
}

func writeResult(path string, result *FileResult) error {
	if result.Timestamps == nil {
		result.Timestamps = []protocol.Segment{}
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result file: %w", err)
	}
	return nil
}

func isAudioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".mp3", ".flac":
		return true
	}
	return false
}
