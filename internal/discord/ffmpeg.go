package discord

import "os/exec"

// ffmpegPCMCommand builds the ffmpeg invocation that decodes a source URL
// to 16-bit little-endian stereo PCM at 48kHz on stdout.
func ffmpegPCMCommand(sourceURL string) *exec.Cmd {
	return exec.Command("ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-i", sourceURL,
		"-f", "s16le",
		"-ar", "48000",
		"-ac", "2",
		"pipe:1",
	)
}
