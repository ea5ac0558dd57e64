package media

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FFmpeg wraps ffmpeg/ffprobe invocations shared by the source managers.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

func NewFFmpeg(logger *slog.Logger) *FFmpeg {
	return &FFmpeg{ffmpegPath: "ffmpeg", ffprobePath: "ffprobe", logger: logger}
}

// Duration probes the container and returns the duration in seconds.
func (f *FFmpeg) Duration(ctx context.Context, inputPath string) (float64, error) {
	cmd := exec.CommandContext(ctx,
		f.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w", err)
	}
	val := strings.TrimSpace(string(out))
	if val == "" {
		return 0, errors.New("empty duration response")
	}
	duration, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration from ffprobe: %w", err)
	}
	return duration, nil
}

// ExtractAudio converts the input container to an mp3 file at outputPath.
func (f *FFmpeg) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-y",
		"-i", inputPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-q:a", "2",
		outputPath,
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var lastErrLine string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lastErrLine = line
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lastErrLine != "" {
			return fmt.Errorf("ffmpeg failed: %s", lastErrLine)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// Thumbnail grabs a frame one second in, scales it to 300px wide, and
// returns it as a data URL usable directly by a client.
func (f *FFmpeg) Thumbnail(ctx context.Context, inputPath string) (string, error) {
	framePath := filepath.Join(filepath.Dir(inputPath), "thumb.jpg")
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-y",
		"-ss", "1",
		"-i", inputPath,
		"-vframes", "1",
		"-vf", "scale=300:-1",
		framePath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		f.logger.Warn("thumbnail extraction failed", "error", err, "output", tail(string(out)))
		return "", fmt.Errorf("ffmpeg thumbnail: %w", err)
	}
	defer os.Remove(framePath)

	content, err := os.ReadFile(framePath)
	if err != nil {
		return "", fmt.Errorf("read thumbnail frame: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(content), nil
}

func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
