// Command announce is a hook program that speaks each new avoidance command
// aloud. Point AVOID_HOOK at its binary.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/ayusman/avoid/internal/avoidance"
	"github.com/ayusman/avoid/internal/hook"
)

// phrases maps commands to what is spoken for them.
var phrases = map[avoidance.Command]string{
	avoidance.Clear:     "clear",
	avoidance.RollLeft:  "roll left",
	avoidance.RollRight: "roll right",
	avoidance.PitchUp:   "pull up",
	avoidance.PitchDown: "push down",
}

func main() {
	resp := handle(os.Stdin, speak)
	json.NewEncoder(os.Stdout).Encode(resp)
}

func handle(r io.Reader, say func(string) error) hook.Response {
	var req hook.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return hook.Response{Error: fmt.Sprintf("failed to decode request: %v", err)}
	}
	if req.Event != hook.EventCommand {
		return hook.Response{Error: fmt.Sprintf("unknown event: %s", req.Event)}
	}

	phrase, ok := phrases[req.Command]
	if !ok {
		return hook.Response{Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}

	if err := say(phrase); err != nil {
		return hook.Response{Error: fmt.Sprintf("speak %q failed: %v", phrase, err)}
	}
	return hook.Response{Success: true}
}

// speak uses the platform text-to-speech command.
func speak(text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("say", text)
	case "linux":
		cmd = exec.Command("espeak", text)
	default:
		return errors.New("no speech command for " + runtime.GOOS)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
