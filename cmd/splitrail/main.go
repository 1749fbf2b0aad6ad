package main

import (
	"github.com/Piebald-AI/splitrail/internal/cli"

	// Source decoders register themselves on import.
	_ "github.com/Piebald-AI/splitrail/internal/decoder/claudecode"
	_ "github.com/Piebald-AI/splitrail/internal/decoder/codex"
	_ "github.com/Piebald-AI/splitrail/internal/decoder/gemini"
)

func main() {
	cli.Execute()
}
