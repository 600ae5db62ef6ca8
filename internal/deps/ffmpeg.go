package deps

import "strings"

// FFmpegRequirement describes the frame extraction binary.
func FFmpegRequirement(binary string) Requirement {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Required to extract the first frame of uploads",
	}
}

// CheckFFmpeg reports whether the configured ffmpeg binary can be executed.
func CheckFFmpeg(binary string) Status {
	return checkBinary(FFmpegRequirement(binary))
}
